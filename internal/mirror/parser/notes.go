package parser

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

// MaxSummaryLength bounds heuristic summaries, in runes.
const MaxSummaryLength = 280

var noteName = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\.md$`)

// NoteDate returns the date encoded in a daily note's file name, if the
// name is YYYY-MM-DD.md and the date exists on the calendar.
func NoteDate(path string) (string, bool) {
	m := noteName.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", false
	}
	if _, err := time.Parse(schema.DateLayout, m[1]); err != nil {
		return "", false
	}
	return m[1], true
}

// ParseDailyNote returns the note for a date-named file, or nil when the
// file name is not a valid date. A "summary" frontmatter key wins over the
// heuristic summary.
func ParseDailyNote(path, text string, _ Options) []schema.DailyNote {
	date, ok := NoteDate(path)
	if !ok {
		return nil
	}
	fm, body := SplitFrontmatter(text)
	content := strings.TrimSpace(body)

	note := schema.DailyNote{
		Date:      date,
		Content:   content,
		WordCount: len(strings.Fields(content)),
	}
	if s := fm.String("summary"); s != "" {
		note.Summary = s
		note.SummaryFromSource = true
	} else {
		note.Summary = HeuristicSummary(content)
	}
	return []schema.DailyNote{note}
}

// HeuristicSummary joins the first three list items or text lines of a
// note with "; ", truncated to MaxSummaryLength runes.
func HeuristicSummary(content string) string {
	var parts []string
	for _, tok := range Lex(content) {
		if len(parts) == 3 {
			break
		}
		if tok.Kind != ListItem && tok.Kind != Text {
			continue
		}
		if s := StripInline(tok.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return truncate(strings.Join(parts, "; "), MaxSummaryLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
