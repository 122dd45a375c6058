package schema

import (
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"
)

// MaxTitleLength bounds titles and other key text fields.
const MaxTitleLength = 500

// DateLayout is the layout for note dates and normalized calendar dates.
const DateLayout = "2006-01-02"

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Task is one actionable item from the task list.
type Task struct {
	Title       string     `db:"title" json:"title"`
	Status      TaskStatus `db:"status" json:"status"`
	Category    string     `db:"category" json:"category"`
	Description string     `db:"description" json:"description"`
	Priority    Priority   `db:"priority" json:"priority"`
	Source      string     `db:"source" json:"source"`
}

// Validate checks that the task can be stored.
func (t *Task) Validate() error {
	if err := validateKeyText("title", t.Title); err != nil {
		return err
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status %q for task %q", t.Status, t.Title)
	}
	return nil
}

// JobPipelineEntry is one row of the job application pipeline.
type JobPipelineEntry struct {
	Company     string    `db:"company" json:"company"`
	Role        string    `db:"role" json:"role"`
	Location    string    `db:"location" json:"location"`
	Link        string    `db:"link" json:"link"`
	JDStatus    string    `db:"jd_status" json:"jd_status"`
	CVStatus    string    `db:"cv_status" json:"cv_status"`
	Status      JobStatus `db:"status" json:"status"`
	ATSScore    *int      `db:"ats_score" json:"ats_score,omitempty"`
	AppliedDate string    `db:"applied_date" json:"applied_date"`
}

// Validate checks that the entry can be stored.
func (j *JobPipelineEntry) Validate() error {
	if err := validateKeyText("company", j.Company); err != nil {
		return err
	}
	if err := validateKeyText("role", j.Role); err != nil {
		return err
	}
	if !j.Status.IsValid() {
		return fmt.Errorf("invalid status %q for %s / %s", j.Status, j.Company, j.Role)
	}
	if j.ATSScore != nil && (*j.ATSScore < 0 || *j.ATSScore > 100) {
		return fmt.Errorf("ats_score must be between 0 and 100 (got %d)", *j.ATSScore)
	}
	return nil
}

// ContentPipelineItem is one piece of content in the editorial calendar.
type ContentPipelineItem struct {
	Stage         ContentStage `db:"stage" json:"stage"`
	Title         string       `db:"title" json:"title"`
	Pillar        string       `db:"pillar" json:"pillar"`
	FilePath      string       `db:"file_path" json:"file_path"`
	WordCount     *int         `db:"word_count" json:"word_count,omitempty"`
	ScheduledDate string       `db:"scheduled_date" json:"scheduled_date"`
	PublishedDate string       `db:"published_date" json:"published_date"`
	Performance   string       `db:"performance" json:"performance"`
}

// Validate checks that the item can be stored.
func (c *ContentPipelineItem) Validate() error {
	if !c.Stage.IsValid() {
		return fmt.Errorf("invalid stage %q", c.Stage)
	}
	if err := validateKeyText("title", c.Title); err != nil {
		return err
	}
	if c.WordCount != nil && *c.WordCount < 0 {
		return fmt.Errorf("word_count cannot be negative (got %d)", *c.WordCount)
	}
	return nil
}

// Goal is one objective under a goal category.
//
// Progress is binary: 0 while Active, 100 once Done.
type Goal struct {
	Category  string     `db:"category" json:"category"`
	Objective string     `db:"objective" json:"objective"`
	Status    GoalStatus `db:"status" json:"status"`
	Deadline  string     `db:"deadline" json:"deadline"`
	Progress  int        `db:"progress" json:"progress"`
}

// Validate checks that the goal can be stored.
func (g *Goal) Validate() error {
	if err := validateKeyText("category", g.Category); err != nil {
		return err
	}
	if err := validateKeyText("objective", g.Objective); err != nil {
		return err
	}
	if g.Status != GoalActive && g.Status != GoalDone {
		return fmt.Errorf("invalid goal status %q", g.Status)
	}
	if g.Progress != 0 && g.Progress != 100 {
		return fmt.Errorf("progress must be 0 or 100 (got %d)", g.Progress)
	}
	return nil
}

// MemoryHighlight is the body of one section of a memory file.
type MemoryHighlight struct {
	Section    string `db:"section" json:"section"`
	Content    string `db:"content" json:"content"`
	FileSource string `db:"file_source" json:"file_source"`
}

// Validate checks that the highlight can be stored.
func (m *MemoryHighlight) Validate() error {
	if m.FileSource == "" {
		return fmt.Errorf("file_source is required")
	}
	if m.Section == "" {
		return fmt.Errorf("section is required")
	}
	return nil
}

// DailyNote is a date-named journal note.
type DailyNote struct {
	Date      string `db:"date" json:"date"`
	Content   string `db:"content" json:"content"`
	Summary   string `db:"summary" json:"summary"`
	WordCount int    `db:"word_count" json:"word_count"`

	// SummaryFromSource is set when the summary came from frontmatter and
	// must not be replaced by a generated one.
	SummaryFromSource bool `db:"-" json:"-"`
}

// Validate checks that the note can be stored.
func (n *DailyNote) Validate() error {
	if !isoDate.MatchString(n.Date) {
		return fmt.Errorf("date must be YYYY-MM-DD (got %q)", n.Date)
	}
	if _, err := time.Parse(DateLayout, n.Date); err != nil {
		return fmt.Errorf("invalid date %q: %w", n.Date, err)
	}
	return nil
}

// CVHistoryEntry records one tailored CV submission.
type CVHistoryEntry struct {
	JobTitle string `db:"job_title" json:"job_title"`
	Company  string `db:"company" json:"company"`
	ATSScore *int   `db:"ats_score" json:"ats_score,omitempty"`
	Status   string `db:"status" json:"status"`
	Notes    string `db:"notes" json:"notes"`
}

// Validate checks that the entry can be stored.
func (c *CVHistoryEntry) Validate() error {
	if err := validateKeyText("job_title", c.JobTitle); err != nil {
		return err
	}
	return validateKeyText("company", c.Company)
}

// SyncLogEntry is one row of the append-only sync audit trail.
type SyncLogEntry struct {
	ID           int64      `db:"id" json:"id"`
	File         string     `db:"file" json:"file"`
	Status       SyncStatus `db:"status" json:"status"`
	RowsAffected int        `db:"rows_affected" json:"rows_affected"`
	Error        string     `db:"error" json:"error,omitempty"`
	Timestamp    time.Time  `db:"-" json:"timestamp"`
	RunID        string     `db:"run_id" json:"run_id,omitempty"`
	DurationMS   int64      `db:"duration_ms" json:"duration_ms"`
}

// IsISODate reports whether s is already a YYYY-MM-DD date.
func IsISODate(s string) bool {
	return isoDate.MatchString(s)
}

func validateKeyText(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if n := utf8.RuneCountInString(value); n > MaxTitleLength {
		return fmt.Errorf("%s must be %d characters or less (got %d)", field, MaxTitleLength, n)
	}
	return nil
}
