// Package schema defines the typed records mirrored from markdown systems of record.
//
// # Overview
//
// Every record type carries a natural key: the field set that identifies the
// "same logical record" across syncs. The store never relies on ids assigned
// by the source files.
//
//	Record               Table               Natural key
//	Task                 tasks               title
//	JobPipelineEntry     job_pipeline        (company, role)
//	ContentPipelineItem  content_pipeline    (stage, title)
//	Goal                 goals               (category, objective)
//	MemoryHighlight      memory_highlights   none (replace-all per file_source)
//	DailyNote            daily_notes         date
//	CVHistoryEntry       cv_history          (job_title, company)
//	SyncLogEntry         sync_log            none (append-only)
//
// # Validation
//
// Each record exposes Validate. The writer validates every record of a file
// before opening a transaction, so a single invalid record fails the file
// without partial writes.
//
// # Usage Examples
//
//	task := schema.Task{
//	    Title:    "Fix login bug",
//	    Status:   schema.TaskUrgent,
//	    Priority: schema.PriorityHigh,
//	    Category: schema.CategoryGeneral,
//	    Source:   "TASKS.md",
//	}
//	if err := task.Validate(); err != nil {
//	    return err
//	}
package schema
