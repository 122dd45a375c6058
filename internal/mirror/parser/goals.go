package parser

import (
	"regexp"
	"strings"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

var goalRules = Rules{
	SectionLevel: 2,
	OpensSection: func(h Token) bool {
		return h.Level == 2 && CleanHeading(h.Text) != ""
	},
	OpensRecord: func(tok Token, _ *Token) bool {
		return tok.Kind == ListItem && tok.Checked != nil
	},
}

// Deadline suffixes, tried in order. The last one is only accepted when the
// captured text parses as a date, so "by myself" stays in the objective.
var (
	deadlineParen   = regexp.MustCompile(`(?i)\s*\((?:due|by)\s+([^)]+)\)\s*$`)
	deadlineCal     = regexp.MustCompile(`\s*📅\s*(.+?)\s*$`)
	deadlineLabel   = regexp.MustCompile(`(?i)[\s,;\-–—]*deadline:\s*(.+?)\s*$`)
	deadlineTrailBy = regexp.MustCompile(`(?i)\s+by\s+(.+?)\s*$`)
)

// ParseGoals extracts goals. Each "##" heading is a category and each
// checkbox item under it is an objective. Progress is 0 or 100.
func ParseGoals(text string, opts Options) []schema.Goal {
	_, body := SplitFrontmatter(text)
	events := Segment(Lex(body), goalRules)
	acc := reduce(events, goalAcc{opts: opts}, goalAcc.step)
	return acc.goals
}

type goalAcc struct {
	opts     Options
	category string
	goals    []schema.Goal
}

func (a goalAcc) step(ev Event) goalAcc {
	switch ev.Kind {
	case SectionStart:
		a.category = CleanHeading(ev.Token.Text)
	case RecordStart:
		if g, ok := buildGoal(a.category, ev.Token, a.opts); ok {
			a.goals = append(a.goals, g)
		}
	}
	return a
}

func buildGoal(category string, tok Token, opts Options) (schema.Goal, bool) {
	objective, deadline := splitDeadline(StripInline(tok.Text), opts)
	if objective == "" {
		return schema.Goal{}, false
	}
	g := schema.Goal{
		Category:  category,
		Objective: objective,
		Status:    schema.GoalActive,
		Deadline:  deadline,
	}
	if *tok.Checked {
		g.Status = schema.GoalDone
		g.Progress = 100
	}
	return g, true
}

// splitDeadline removes a recognized deadline suffix from an objective and
// returns both parts.
func splitDeadline(text string, opts Options) (string, string) {
	for _, re := range []*regexp.Regexp{deadlineParen, deadlineCal, deadlineLabel} {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			raw := text[m[2]:m[3]]
			return strings.TrimSpace(text[:m[0]]), NormalizeDate(raw, opts.Reference)
		}
	}
	if m := deadlineTrailBy.FindStringSubmatchIndex(text); m != nil {
		raw := text[m[2]:m[3]]
		if d, ok := parseDate(cellText(raw), opts.Reference); ok {
			return strings.TrimSpace(text[:m[0]]), d
		}
	}
	return text, ""
}
