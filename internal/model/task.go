package model

import "time"

// Category groups tasks by life area.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryMeetings      Category = "meetings"
	CategoryFinance       Category = "finance"
	CategoryShopping      Category = "shopping"
	CategoryCommunication Category = "communication"
	CategoryHealth        Category = "health"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryMeetings, CategoryFinance,
		CategoryShopping, CategoryCommunication, CategoryHealth:
		return true
	}
	return false
}

// Priority is the user-facing urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Source records how a task came into existence.
type Source string

const (
	SourceNotification Source = "notification"
	SourceChat         Source = "chat"
	SourceManual       Source = "manual"
)

// Valid reports whether s is one of the known task sources.
func (s Source) Valid() bool {
	switch s {
	case SourceNotification, SourceChat, SourceManual:
		return true
	}
	return false
}

// Task is a durable actionable item. Tasks are never hard-deleted;
// IsDeleted hides them from every active query.
type Task struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Category    Category   `json:"category" db:"category"`
	Priority    Priority   `json:"priority" db:"priority"`
	Status      Status     `json:"status" db:"status"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Source      Source     `json:"source" db:"source"`
	SourceApp   *string    `json:"source_app,omitempty" db:"source_app"`
	IsDeleted   bool       `json:"is_deleted" db:"is_deleted"`

	LocationDependent bool `json:"location_dependent" db:"location_dependent"`
	WeatherDependent  bool `json:"weather_dependent" db:"weather_dependent"`
	TimeDependent     bool `json:"time_dependent" db:"time_dependent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the task still needs attention.
func (t Task) IsActive() bool {
	return !t.IsDeleted && t.Status != StatusCompleted
}

// TaskDraft carries the fields of a task about to be created.
type TaskDraft struct {
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Category          Category   `json:"category,omitempty"`
	Priority          Priority   `json:"priority,omitempty"`
	SourceApp         string     `json:"source_app,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	LocationDependent bool       `json:"location_dependent,omitempty"`
	WeatherDependent  bool       `json:"weather_dependent,omitempty"`
	TimeDependent     bool       `json:"time_dependent,omitempty"`
}

// TaskPatch is a partial update. Nil fields keep their stored value.
type TaskPatch struct {
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Category          *Category  `json:"category,omitempty"`
	Priority          *Priority  `json:"priority,omitempty"`
	Status            *Status    `json:"status,omitempty"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	LocationDependent *bool      `json:"location_dependent,omitempty"`
	WeatherDependent  *bool      `json:"weather_dependent,omitempty"`
	TimeDependent     *bool      `json:"time_dependent,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Priority == nil && p.Status == nil && p.DueDate == nil &&
		p.LocationDependent == nil && p.WeatherDependent == nil &&
		p.TimeDependent == nil
}
