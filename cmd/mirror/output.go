package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// printer writes styled command output. Styles degrade to plain text when
// the writer is not a terminal or color is turned off.
type printer struct {
	w io.Writer

	pass   lipgloss.Style
	fail   lipgloss.Style
	warn   lipgloss.Style
	accent lipgloss.Style
	bold   lipgloss.Style
	muted  lipgloss.Style
}

func newPrinter(cmd *cobra.Command) *printer {
	w := cmd.OutOrStdout()
	noColor, _ := cmd.Flags().GetBool("no-color")

	r := lipgloss.NewRenderer(w)
	if noColor || termenv.EnvNoColor() || !isTerminal(w) {
		r.SetColorProfile(termenv.Ascii)
	}

	return &printer{
		w:      w,
		pass:   r.NewStyle().Foreground(lipgloss.Color("2")),
		fail:   r.NewStyle().Foreground(lipgloss.Color("1")),
		warn:   r.NewStyle().Foreground(lipgloss.Color("3")),
		accent: r.NewStyle().Foreground(lipgloss.Color("6")),
		bold:   r.NewStyle().Bold(true),
		muted:  r.NewStyle().Faint(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.pass.Render("✓ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Failure(format string, args ...any) {
	fmt.Fprintln(p.w, p.fail.Render("✗ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.w, p.warn.Render("⚠ "+fmt.Sprintf(format, args...)))
}

func (p *printer) Step(format string, args ...any) {
	fmt.Fprintln(p.w, p.accent.Render("→ "+fmt.Sprintf(format, args...)))
}

// statusStyle colors a sync status.
func (p *printer) statusStyle(s schema.SyncStatus) lipgloss.Style {
	switch s {
	case schema.SyncOK:
		return p.pass
	case schema.SyncError:
		return p.fail
	default:
		return p.warn
	}
}

// outcome prints one per-file result line.
func (p *printer) outcome(o msync.FileOutcome) {
	status := p.statusStyle(o.Status).Render(fmt.Sprintf("%-7s", o.Status))
	line := fmt.Sprintf("  %s %-28s %4d new", status, o.File, o.Rows)
	if o.Error != "" {
		line += "  " + p.muted.Render(o.Error)
	}
	fmt.Fprintln(p.w, line)
}

// renderStatus prints a status report. now anchors relative times.
func (p *printer) renderStatus(st *msync.Status, now time.Time) {
	state := p.muted.Render(string(st.RunState))
	if st.RunState == msync.StateRunning {
		state = p.pass.Render(string(st.RunState))
	}
	p.Printf("\n%s  %s\n", p.bold.Render("Mirror Status"), state)

	if st.LastFullSync.IsZero() {
		p.Printf("Last full sync: %s\n", p.warn.Render("never"))
	} else {
		p.Printf("Last full sync: %s (%s ago)\n",
			st.LastFullSync.Local().Format("2006-01-02 15:04:05"),
			now.Sub(st.LastFullSync).Round(time.Second))
	}
	if st.Syncing {
		p.Printf("%s\n", p.accent.Render("Sync in progress"))
	}

	tables := make([]string, 0, len(st.RowCounts))
	for t := range st.RowCounts {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	p.Printf("\n%s\n", p.bold.Render(fmt.Sprintf("%-20s %8s", "TABLE", "ROWS")))
	for _, t := range tables {
		p.Printf("%-20s %8d\n", t, st.RowCounts[t])
	}

	p.Printf("\n%s\n", p.bold.Render(fmt.Sprintf("%-28s %-8s %6s  %-19s  %s", "FILE", "STATUS", "ROWS", "AT", "ERROR")))
	if len(st.Files) == 0 {
		p.Printf("%s\n", p.muted.Render("no files synced yet"))
	}
	for _, f := range st.Files {
		at := ""
		if !f.At.IsZero() {
			at = f.At.Local().Format("2006-01-02 15:04:05")
		}
		status := p.statusStyle(f.Status).Render(fmt.Sprintf("%-8s", f.Status))
		p.Printf("%-28s %s %6d  %-19s  %s\n", f.File, status, f.Rows, at, f.Error)
	}
	p.Printf("\n")
}
