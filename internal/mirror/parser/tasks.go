package parser

import (
	"strings"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

var taskRules = Rules{
	SectionLevel: 2,
	OpensSection: func(h Token) bool {
		_, ok := InferTaskStatus(h.Text)
		return ok
	},
	OpensRecord: func(tok Token, open *Token) bool {
		switch tok.Kind {
		case Heading:
			return tok.Level == 3
		case ListItem:
			// Inside a "###" task, top-level bullets are its description.
			return tok.Indent == 0 && (open == nil || open.Kind != Heading)
		}
		return false
	},
}

// ParseTasks extracts tasks from a task list. Status comes from the
// enclosing section's marker; a checked checkbox always means Done.
func ParseTasks(text string, opts Options) []schema.Task {
	_, body := SplitFrontmatter(text)
	events := Segment(Lex(body), taskRules)
	acc := reduce(events, taskAcc{source: opts.Source}, taskAcc.step)
	return acc.tasks
}

type taskDraft struct {
	title   string
	checked bool
	lines   []string
}

type taskAcc struct {
	source string
	status schema.TaskStatus
	open   *taskDraft
	tasks  []schema.Task
}

func (a taskAcc) step(ev Event) taskAcc {
	switch ev.Kind {
	case SectionStart:
		a.status, _ = InferTaskStatus(ev.Token.Text)
	case RecordStart:
		d := &taskDraft{title: StripInline(ev.Token.Text)}
		if ev.Token.Checked != nil {
			d.checked = *ev.Token.Checked
		}
		a.open = d
	case Line:
		if a.open == nil {
			break
		}
		switch ev.Token.Kind {
		case ListItem, Text:
			if s := StripInline(ev.Token.Text); s != "" {
				a.open.lines = append(a.open.lines, s)
			}
		}
	case RecordEnd:
		if a.open != nil && a.open.title != "" {
			a.tasks = append(a.tasks, a.build(*a.open))
		}
		a.open = nil
	}
	return a
}

func (a taskAcc) build(d taskDraft) schema.Task {
	status := a.status
	if d.checked {
		status = schema.TaskDone
	}
	desc := strings.Join(d.lines, "\n")
	return schema.Task{
		Title:       d.title,
		Status:      status,
		Category:    InferCategory(d.title, desc),
		Description: desc,
		Priority:    status.Priority(),
		Source:      a.source,
	}
}
