package parser

import (
	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

var cvFields = []Field{
	{Name: "job_title", Synonyms: []string{"job title", "role", "position", "title"}},
	{Name: "company", Synonyms: []string{"company", "employer"}},
	{Name: "ats_score", Synonyms: []string{"ats score", "ats", "score"}},
	{Name: "status", Synonyms: []string{"status", "outcome", "result"}},
	{Name: "notes", Synonyms: []string{"notes", "comments", "remarks"}},
}

// ParseCVHistory extracts CV submissions from every table with a job title
// and a company column.
func ParseCVHistory(text string, _ Options) []schema.CVHistoryEntry {
	_, body := SplitFrontmatter(text)

	var out []schema.CVHistoryEntry
	for _, t := range Tables(Lex(body)) {
		cols := t.Resolve(cvFields...)
		if !cols.Has("job_title") || !cols.Has("company") {
			continue
		}
		for _, row := range t.Rows {
			entry := schema.CVHistoryEntry{
				JobTitle: cellText(cols.Cell(row, "job_title")),
				Company:  cellText(cols.Cell(row, "company")),
				ATSScore: parseScore(cols.Cell(row, "ats_score")),
				Status:   cellText(cols.Cell(row, "status")),
				Notes:    cellText(cols.Cell(row, "notes")),
			}
			if entry.JobTitle == "" || entry.Company == "" {
				continue
			}
			out = append(out, entry)
		}
	}
	return out
}
