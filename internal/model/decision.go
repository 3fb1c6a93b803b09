package model

import (
	"fmt"
	"strings"
)

// Action is the task mutation chosen for a notification.
type Action string

const (
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionComplete Action = "complete"
	ActionIgnore   Action = "ignore"
)

// NeedsTarget reports whether the action mutates an existing task.
func (a Action) NeedsTarget() bool {
	return a == ActionEdit || a == ActionDelete || a == ActionComplete
}

// Decision is one structured action returned by the decision collaborator.
type Decision struct {
	Action       Action     `json:"action"`
	TargetTaskID string     `json:"target_task_id,omitempty"`
	Task         *TaskDraft `json:"task,omitempty"`
	Patch        *TaskPatch `json:"patch,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

// Validate checks the structural integrity of the decision. It does not
// check that the target exists; see DecisionInput.HasTask.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionCreate:
		if d.Task == nil || strings.TrimSpace(d.Task.Title) == "" {
			return fmt.Errorf("create requires a task title")
		}
		if d.Task.Category != "" && !d.Task.Category.Valid() {
			return fmt.Errorf("unknown category %q", d.Task.Category)
		}
		if d.Task.Priority != "" && !d.Task.Priority.Valid() {
			return fmt.Errorf("unknown priority %q", d.Task.Priority)
		}
	case ActionEdit:
		if d.TargetTaskID == "" {
			return fmt.Errorf("edit requires target_task_id")
		}
		if d.Patch == nil || d.Patch.IsEmpty() {
			return fmt.Errorf("edit requires at least one field")
		}
		if d.Patch.Title != nil && strings.TrimSpace(*d.Patch.Title) == "" {
			return fmt.Errorf("edit cannot blank the title")
		}
		if d.Patch.Category != nil && !d.Patch.Category.Valid() {
			return fmt.Errorf("unknown category %q", *d.Patch.Category)
		}
		if d.Patch.Priority != nil && !d.Patch.Priority.Valid() {
			return fmt.Errorf("unknown priority %q", *d.Patch.Priority)
		}
		if d.Patch.Status != nil && !d.Patch.Status.Valid() {
			return fmt.Errorf("unknown status %q", *d.Patch.Status)
		}
	case ActionDelete, ActionComplete:
		if d.TargetTaskID == "" {
			return fmt.Errorf("%s requires target_task_id", d.Action)
		}
	case ActionIgnore:
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
	return nil
}

// DecisionInput bundles a notification with the context the collaborator
// needs to choose an action.
type DecisionInput struct {
	Notification Notification `json:"notification"`

	// RecentNotifications are other notifications from the same source
	// app in the last 24 hours, newest first.
	RecentNotifications []Notification `json:"recent_notifications"`

	// SourceTasks are non-deleted tasks created from the same source app
	// in the last 7 days.
	SourceTasks []Task `json:"source_tasks"`

	// ActiveTasks is the pending/in-progress pool shared by the whole batch.
	ActiveTasks []Task `json:"active_tasks"`
}

// HasTask reports whether id appears in either task context list.
func (in DecisionInput) HasTask(id string) bool {
	for _, t := range in.SourceTasks {
		if t.ID == id {
			return true
		}
	}
	for _, t := range in.ActiveTasks {
		if t.ID == id {
			return true
		}
	}
	return false
}
