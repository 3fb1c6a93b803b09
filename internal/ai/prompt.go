package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/taskradar/internal/model"
)

// buildDecisionSystemPrompt describes the decision rules to the model.
func buildDecisionSystemPrompt() string {
	var sb strings.Builder

	sb.WriteString("You turn phone notifications into task list changes. ")
	sb.WriteString("You receive one notification together with recent ")
	sb.WriteString("notifications from the same app and the user's recent tasks.\n\n")

	sb.WriteString("Choose exactly one action and record it with the ")
	sb.WriteString(DecisionToolName)
	sb.WriteString(" tool:\n")
	sb.WriteString("- create: the notification asks the user to do something new\n")
	sb.WriteString("- edit: it changes an existing task (new time, new item, new place)\n")
	sb.WriteString("- complete: it says an existing task is done\n")
	sb.WriteString("- delete: it cancels an existing task\n")
	sb.WriteString("- ignore: nothing actionable, or a task for it already exists\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString("- Prefer edit over create when a recent notification from the same ")
	sb.WriteString("app already produced a task about the same thing.\n")
	sb.WriteString("- target_task_id must be copied from source_tasks or active_tasks. ")
	sb.WriteString("Never invent an ID.\n")
	sb.WriteString("- For edit, send only the fields that change.\n")
	sb.WriteString("- Set location_dependent when the task needs a visit to a shop, ")
	sb.WriteString("pharmacy, bank, post office or similar place.\n")
	sb.WriteString("- Promotional and social noise is ignore.")

	return sb.String()
}

// decisionRequest is the JSON document sent as the user message.
type decisionRequest struct {
	SchemaVersion       string             `json:"schema_version"`
	Now                 string             `json:"now"`
	Notification        notificationView   `json:"notification"`
	RecentNotifications []notificationView `json:"recent_notifications"`
	SourceTasks         []taskView         `json:"source_tasks"`
	ActiveTasks         []taskView         `json:"active_tasks"`
}

type notificationView struct {
	ID        string `json:"id"`
	SourceApp string `json:"source_app"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type taskView struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	Category          string `json:"category"`
	Priority          string `json:"priority"`
	Status            string `json:"status"`
	DueDate           string `json:"due_date,omitempty"`
	SourceApp         string `json:"source_app,omitempty"`
	LocationDependent bool   `json:"location_dependent,omitempty"`
	CreatedAt         string `json:"created_at"`
}

func viewNotification(n model.Notification) notificationView {
	return notificationView{
		ID:        n.ID,
		SourceApp: n.SourceApp,
		Title:     n.Title,
		Content:   n.Content,
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
	}
}

func viewTask(t model.Task) taskView {
	v := taskView{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		Category:          string(t.Category),
		Priority:          string(t.Priority),
		Status:            string(t.Status),
		LocationDependent: t.LocationDependent,
		CreatedAt:         t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.DueDate != nil {
		v.DueDate = t.DueDate.UTC().Format(time.RFC3339)
	}
	if t.SourceApp != nil {
		v.SourceApp = *t.SourceApp
	}
	return v
}

// renderDecisionInput serializes the decision input for the user message.
func renderDecisionInput(in model.DecisionInput, now time.Time) (string, error) {
	req := decisionRequest{
		SchemaVersion:       SchemaVersion,
		Now:                 now.UTC().Format(time.RFC3339),
		Notification:        viewNotification(in.Notification),
		RecentNotifications: make([]notificationView, 0, len(in.RecentNotifications)),
		SourceTasks:         make([]taskView, 0, len(in.SourceTasks)),
		ActiveTasks:         make([]taskView, 0, len(in.ActiveTasks)),
	}
	for _, n := range in.RecentNotifications {
		req.RecentNotifications = append(req.RecentNotifications, viewNotification(n))
	}
	for _, t := range in.SourceTasks {
		req.SourceTasks = append(req.SourceTasks, viewTask(t))
	}
	for _, t := range in.ActiveTasks {
		req.ActiveTasks = append(req.ActiveTasks, viewTask(t))
	}

	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding decision input: %w", err)
	}
	return string(b), nil
}

func buildSearchSystemPrompt() string {
	return "You help a location reminder app. Given a task, propose a short " +
		"keyword for a nearby-places search that would find somewhere the " +
		"task can be done, such as \"pharmacy\" or \"grocery store\". " +
		"Answer with the " + SearchToolName + " tool. Use an empty keyword " +
		"when no physical place would help."
}

func renderSearchInput(task model.Task) (string, error) {
	b, err := json.Marshal(struct {
		SchemaVersion string   `json:"schema_version"`
		Task          taskView `json:"task"`
	}{SchemaVersion, viewTask(task)})
	if err != nil {
		return "", fmt.Errorf("encoding search input: %w", err)
	}
	return string(b), nil
}
