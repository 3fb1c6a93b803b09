package model

import "time"

// Skip reasons recorded on notifications that did not produce a task mutation.
const (
	SkipReasonIgnored   = "ignored"
	SkipReasonDuplicate = "duplicate_title"
)

// Notification is a raw inbound event from a source app, awaiting a
// task decision.
type Notification struct {
	// ID is the unique identifier for this notification.
	ID string `json:"id" db:"id"`

	// SourceApp identifies the app that emitted the notification
	// (e.g., "com.messages", "email").
	SourceApp string `json:"source_app" db:"source_app"`

	Title   string `json:"title" db:"title"`
	Content string `json:"content" db:"content"`

	// Timestamp is when the source app emitted the notification.
	Timestamp time.Time `json:"timestamp" db:"timestamp"`

	// Processed is set once the executor has applied a decision.
	Processed   bool       `json:"processed" db:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`

	// RelatedTaskID is the task created or mutated by this notification.
	RelatedTaskID *string `json:"related_task_id,omitempty" db:"related_task_id"`

	// SkipReason explains why no task was touched.
	SkipReason *string `json:"skip_reason,omitempty" db:"skip_reason"`
}
