package parser

import (
	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

var jobFields = []Field{
	{Name: "company", Synonyms: []string{"company", "employer", "org"}},
	{Name: "role", Synonyms: []string{"role", "position", "title"}},
	{Name: "location", Synonyms: []string{"location", "city", "remote"}},
	{Name: "link", Synonyms: []string{"link", "url", "posting"}},
	{Name: "jd_status", Synonyms: []string{"jd status", "jd"}},
	{Name: "cv_status", Synonyms: []string{"cv status", "cv", "resume"}},
	{Name: "status", Synonyms: []string{"status", "stage"}},
	{Name: "ats_score", Synonyms: []string{"ats score", "ats", "score"}},
	{Name: "applied_date", Synonyms: []string{"applied date", "date applied", "applied", "date"}},
}

// ParseJobs extracts job pipeline entries from every table that has both a
// company and a role column. Without a status column the table's heading
// decides the status.
func ParseJobs(text string, opts Options) []schema.JobPipelineEntry {
	_, body := SplitFrontmatter(text)

	var out []schema.JobPipelineEntry
	for _, t := range Tables(Lex(body)) {
		cols := t.Resolve(jobFields...)
		if !cols.Has("company") || !cols.Has("role") {
			continue
		}
		for _, row := range t.Rows {
			company := cellText(cols.Cell(row, "company"))
			role := cellText(cols.Cell(row, "role"))
			if company == "" || role == "" {
				continue
			}
			statusText := cols.Cell(row, "status")
			if cellText(statusText) == "" {
				statusText = t.Heading
			}
			out = append(out, schema.JobPipelineEntry{
				Company:     company,
				Role:        role,
				Location:    cellText(cols.Cell(row, "location")),
				Link:        linkTarget(cols.Cell(row, "link")),
				JDStatus:    cellText(cols.Cell(row, "jd_status")),
				CVStatus:    cellText(cols.Cell(row, "cv_status")),
				Status:      InferJobStatus(statusText),
				ATSScore:    parseScore(cols.Cell(row, "ats_score")),
				AppliedDate: NormalizeDate(cols.Cell(row, "applied_date"), opts.Reference),
			})
		}
	}
	return out
}
