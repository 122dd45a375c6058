package parser

import (
	"regexp"
	"strings"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

type marker[T any] struct {
	token string
	value T
}

// match returns the value of the first marker contained in text.
func match[T any](table []marker[T], text string) (T, bool) {
	for _, m := range table {
		if strings.Contains(text, m.token) {
			return m.value, true
		}
	}
	var zero T
	return zero, false
}

// Declaration order is the tie-break when a heading carries several markers.
var taskMarkers = []marker[schema.TaskStatus]{
	{"🔴", schema.TaskUrgent},
	{"🚨", schema.TaskUrgent},
	{"🟡", schema.TaskActive},
	{"🔄", schema.TaskActive},
	{"⛔", schema.TaskBlocked},
	{"🚧", schema.TaskBlocked},
	{"🔵", schema.TaskBacklog},
	{"📋", schema.TaskBacklog},
	{"✅", schema.TaskDone},
}

var jobMarkers = []marker[schema.JobStatus]{
	{"🎉", schema.JobOffer},
	{"❌", schema.JobRejected},
	{"🗣", schema.JobInterviewing},
	{"📞", schema.JobInterviewing},
	{"📨", schema.JobApplied},
	{"📤", schema.JobApplied},
	{"🚫", schema.JobWithdrawn},
	{"⭐", schema.JobWishlist},
	{"🔖", schema.JobWishlist},
}

var jobKeywords = []marker[schema.JobStatus]{
	{"offer", schema.JobOffer},
	{"reject", schema.JobRejected},
	{"declined", schema.JobRejected},
	{"interview", schema.JobInterviewing},
	{"screen", schema.JobInterviewing},
	{"withdr", schema.JobWithdrawn},
	{"appl", schema.JobApplied},
	{"submitted", schema.JobApplied},
	{"wish", schema.JobWishlist},
}

var stageMarkers = []marker[schema.ContentStage]{
	{"💡", schema.StageIdeas},
	{"✍", schema.StageDrafting},
	{"📅", schema.StageScheduled},
	{"✅", schema.StagePublished},
}

var stageKeywords = []marker[schema.ContentStage]{
	{"idea", schema.StageIdeas},
	{"draft", schema.StageDrafting},
	{"scheduled", schema.StageScheduled},
	{"published", schema.StagePublished},
}

type categoryRule struct {
	category string
	words    *regexp.Regexp
}

var categoryRules = []categoryRule{
	{schema.CategoryJobSearch, wordsRe("job", "jobs", "interview", "interviews", "application", "applications", "resume", "cv", "recruiter", "offer letter")},
	{schema.CategoryContent, wordsRe("post", "posts", "article", "blog", "newsletter", "content", "video", "thread", "carousel")},
	{schema.CategorySystem, wordsRe("dashboard", "system", "cron", "automation", "deploy", "server", "infra", "pipeline", "sync")},
}

func wordsRe(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// InferTaskStatus maps a section heading to a task status by emoji marker.
func InferTaskStatus(heading string) (schema.TaskStatus, bool) {
	return match(taskMarkers, heading)
}

// InferJobStatus maps a status cell or heading to a job status: emoji
// markers first, then keywords, then Wishlist.
func InferJobStatus(text string) schema.JobStatus {
	if s, ok := match(jobMarkers, text); ok {
		return s
	}
	if s, ok := match(jobKeywords, strings.ToLower(text)); ok {
		return s
	}
	return schema.JobWishlist
}

// InferStage maps a content calendar heading to a stage.
func InferStage(heading string) (schema.ContentStage, bool) {
	if s, ok := match(stageMarkers, heading); ok {
		return s, true
	}
	return match(stageKeywords, strings.ToLower(CleanHeading(heading)))
}

// InferCategory buckets a task by keywords in its title and description.
func InferCategory(title, description string) string {
	text := title + "\n" + description
	for _, rule := range categoryRules {
		if rule.words.MatchString(text) {
			return rule.category
		}
	}
	return schema.CategoryGeneral
}
