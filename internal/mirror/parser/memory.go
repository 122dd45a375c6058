package parser

import (
	"strings"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

var memoryRules = Rules{
	SectionLevel: 2,
	OpensSection: func(h Token) bool {
		return h.Level == 2 && CleanHeading(h.Text) != ""
	},
}

// ParseMemory returns one highlight per "##" section with a non-empty body.
// FileSource is opts.Source.
func ParseMemory(text string, opts Options) []schema.MemoryHighlight {
	_, body := SplitFrontmatter(text)
	events := Segment(Lex(body), memoryRules)
	acc := reduce(events, memoryAcc{source: opts.Source}, memoryAcc.step)
	return acc.highlights
}

type memoryAcc struct {
	source     string
	section    string
	lines      []string
	highlights []schema.MemoryHighlight
}

func (a memoryAcc) step(ev Event) memoryAcc {
	switch ev.Kind {
	case SectionStart:
		a.section = CleanHeading(ev.Token.Text)
		a.lines = nil
	case Line:
		if s := strings.TrimSpace(ev.Token.Raw); s != "" {
			a.lines = append(a.lines, s)
		}
	case SectionEnd:
		if len(a.lines) > 0 {
			a.highlights = append(a.highlights, schema.MemoryHighlight{
				Section:    a.section,
				Content:    strings.Join(a.lines, "\n"),
				FileSource: a.source,
			})
		}
		a.lines = nil
	}
	return a
}
