package parser

import (
	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

var contentFields = []Field{
	{Name: "title", Synonyms: []string{"title", "topic", "post"}},
	{Name: "pillar", Synonyms: []string{"pillar", "theme", "category"}},
	{Name: "file_path", Synonyms: []string{"file path", "file", "path", "draft"}},
	{Name: "word_count", Synonyms: []string{"word count", "words"}},
	{Name: "scheduled_date", Synonyms: []string{"scheduled date", "scheduled", "publish on"}},
	{Name: "published_date", Synonyms: []string{"published date", "published", "live"}},
	{Name: "performance", Synonyms: []string{"performance", "metrics", "stats", "results"}},
}

var contentRules = Rules{
	SectionLevel: 3,
	OpensSection: func(h Token) bool {
		_, ok := InferStage(h.Text)
		return ok
	},
}

// ParseContent extracts content calendar items. Each stage section's
// tables become items in that stage; rows without a title are skipped.
func ParseContent(text string, opts Options) []schema.ContentPipelineItem {
	_, body := SplitFrontmatter(text)
	events := Segment(Lex(body), contentRules)
	acc := reduce(events, contentAcc{opts: opts}, contentAcc.step)
	return acc.items
}

type contentAcc struct {
	opts   Options
	stage  schema.ContentStage
	tokens []Token
	items  []schema.ContentPipelineItem
}

func (a contentAcc) step(ev Event) contentAcc {
	switch ev.Kind {
	case SectionStart:
		a.stage, _ = InferStage(ev.Token.Text)
		a.tokens = nil
	case Line:
		a.tokens = append(a.tokens, ev.Token)
	case SectionEnd:
		for _, t := range Tables(a.tokens) {
			a.items = append(a.items, a.fromTable(t)...)
		}
		a.tokens = nil
	}
	return a
}

func (a contentAcc) fromTable(t Table) []schema.ContentPipelineItem {
	cols := t.Resolve(contentFields...)
	if !cols.Has("title") {
		return nil
	}
	var items []schema.ContentPipelineItem
	for _, row := range t.Rows {
		title := cellText(cols.Cell(row, "title"))
		if title == "" {
			continue
		}
		items = append(items, schema.ContentPipelineItem{
			Stage:         a.stage,
			Title:         title,
			Pillar:        cellText(cols.Cell(row, "pillar")),
			FilePath:      linkTarget(cols.Cell(row, "file_path")),
			WordCount:     parseInt(cols.Cell(row, "word_count")),
			ScheduledDate: NormalizeDate(cols.Cell(row, "scheduled_date"), a.opts.Reference),
			PublishedDate: NormalizeDate(cols.Cell(row, "published_date"), a.opts.Reference),
			Performance:   cellText(cols.Cell(row, "performance")),
		})
	}
	return items
}
