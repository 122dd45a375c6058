package schema

// TaskStatus is the lifecycle state of a task, inferred from section markers.
type TaskStatus string

const (
	TaskUrgent  TaskStatus = "Urgent"
	TaskActive  TaskStatus = "Active"
	TaskBlocked TaskStatus = "Blocked"
	TaskBacklog TaskStatus = "Backlog"
	TaskDone    TaskStatus = "Done"
)

// IsValid reports whether s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskUrgent, TaskActive, TaskBlocked, TaskBacklog, TaskDone:
		return true
	}
	return false
}

// Priority returns the priority implied by the status.
func (s TaskStatus) Priority() Priority {
	switch s {
	case TaskUrgent:
		return PriorityHigh
	case TaskActive, TaskBlocked:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Priority is a coarse task priority bucket.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Task categories. CategoryGeneral is the default bucket when no keyword matches.
const (
	CategoryJobSearch = "Job Search"
	CategoryContent   = "Content"
	CategorySystem    = "System"
	CategoryGeneral   = "General"
)

// JobStatus is the state of a job application.
type JobStatus string

const (
	JobWishlist     JobStatus = "Wishlist"
	JobApplied      JobStatus = "Applied"
	JobInterviewing JobStatus = "Interviewing"
	JobOffer        JobStatus = "Offer"
	JobRejected     JobStatus = "Rejected"
	JobWithdrawn    JobStatus = "Withdrawn"
)

// IsValid reports whether s is a known job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobWishlist, JobApplied, JobInterviewing, JobOffer, JobRejected, JobWithdrawn:
		return true
	}
	return false
}

// ContentStage is the content calendar column an item sits in.
type ContentStage string

const (
	StageIdeas     ContentStage = "Ideas"
	StageDrafting  ContentStage = "Drafting"
	StageScheduled ContentStage = "Scheduled"
	StagePublished ContentStage = "Published"
)

// IsValid reports whether s is a known content stage.
func (s ContentStage) IsValid() bool {
	switch s {
	case StageIdeas, StageDrafting, StageScheduled, StagePublished:
		return true
	}
	return false
}

// GoalStatus is Active until the goal's checkbox is ticked.
type GoalStatus string

const (
	GoalActive GoalStatus = "Active"
	GoalDone   GoalStatus = "Done"
)

// SyncStatus is the outcome of one per-file sync attempt.
type SyncStatus string

const (
	SyncOK      SyncStatus = "ok"
	SyncError   SyncStatus = "error"
	SyncSkipped SyncStatus = "skipped"
)

// Table names. These are part of the store's compatibility surface.
const (
	TableTasks            = "tasks"
	TableJobPipeline      = "job_pipeline"
	TableContentPipeline  = "content_pipeline"
	TableGoals            = "goals"
	TableMemoryHighlights = "memory_highlights"
	TableDailyNotes       = "daily_notes"
	TableCVHistory        = "cv_history"
	TableSyncLog          = "sync_log"
)

// Tables lists every mirrored table in schema order.
var Tables = []string{
	TableTasks,
	TableJobPipeline,
	TableContentPipeline,
	TableGoals,
	TableMemoryHighlights,
	TableDailyNotes,
	TableCVHistory,
	TableSyncLog,
}
