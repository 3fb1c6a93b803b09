package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nhle/taskradar/internal/model"
)

// Tool names carry their schema version. A model answering with any other
// tool name is ignored.
const (
	DecisionToolName = "record_task_decision"
	SearchToolName   = "propose_place_search"

	// SchemaVersion is sent with every request so prompts and parsers can
	// evolve together.
	SchemaVersion = "v1"
)

// toolSpec is a provider-neutral tool definition.
type toolSpec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

var decisionTool = toolSpec{
	Name: DecisionToolName,
	Description: "Record the single task action to take for the notification. " +
		"Call exactly once.",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["create", "edit", "delete", "complete", "ignore"],
				"description": "The task mutation to apply"
			},
			"target_task_id": {
				"type": "string",
				"description": "ID of an existing task from the context. Required for edit, delete and complete"
			},
			"title": {"type": "string", "description": "Task title. Required for create"},
			"description": {"type": "string"},
			"category": {
				"type": "string",
				"enum": ["general", "meetings", "finance", "shopping", "communication", "health"]
			},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"status": {"type": "string", "enum": ["pending", "in_progress", "completed"]},
			"due_date": {"type": "string", "description": "RFC 3339 timestamp"},
			"location_dependent": {"type": "boolean", "description": "Task needs a visit to a physical place"},
			"weather_dependent": {"type": "boolean"},
			"time_dependent": {"type": "boolean"},
			"reason": {"type": "string", "description": "Short justification, required for ignore"}
		},
		"required": ["action"]
	}`),
}

var searchTool = toolSpec{
	Name: SearchToolName,
	Description: "Propose a short places-search keyword (e.g. \"pharmacy\") for " +
		"a task, or an empty keyword if no physical place would help.",
	Schema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"keyword": {
				"type": "string",
				"description": "Two or three words naming a kind of place, or empty"
			}
		},
		"required": ["keyword"]
	}`),
}

// decisionArgs is the wire shape of a record_task_decision call.
type decisionArgs struct {
	Action            string  `json:"action"`
	TargetTaskID      string  `json:"target_task_id"`
	Title             *string `json:"title"`
	Description       *string `json:"description"`
	Category          *string `json:"category"`
	Priority          *string `json:"priority"`
	Status            *string `json:"status"`
	DueDate           *string `json:"due_date"`
	LocationDependent *bool   `json:"location_dependent"`
	WeatherDependent  *bool   `json:"weather_dependent"`
	TimeDependent     *bool   `json:"time_dependent"`
	Reason            string  `json:"reason"`
}

// parseDecision converts one tool call input into a Decision. Only the
// fields relevant to the action are kept.
func parseDecision(raw json.RawMessage) (model.Decision, error) {
	var args decisionArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return model.Decision{}, fmt.Errorf("decoding %s input: %w", DecisionToolName, err)
	}

	d := model.Decision{
		Action:       model.Action(strings.ToLower(strings.TrimSpace(args.Action))),
		TargetTaskID: strings.TrimSpace(args.TargetTaskID),
		Reason:       args.Reason,
	}

	var due *time.Time
	if args.DueDate != nil && *args.DueDate != "" {
		t, err := time.Parse(time.RFC3339, *args.DueDate)
		if err != nil {
			return model.Decision{}, fmt.Errorf("parsing due_date %q: %w", *args.DueDate, err)
		}
		due = &t
	}

	switch d.Action {
	case model.ActionCreate:
		draft := &model.TaskDraft{DueDate: due}
		if args.Title != nil {
			draft.Title = *args.Title
		}
		if args.Description != nil {
			draft.Description = *args.Description
		}
		if args.Category != nil {
			draft.Category = model.Category(*args.Category)
		}
		if args.Priority != nil {
			draft.Priority = model.Priority(*args.Priority)
		}
		draft.LocationDependent = deref(args.LocationDependent)
		draft.WeatherDependent = deref(args.WeatherDependent)
		draft.TimeDependent = deref(args.TimeDependent)
		d.Task = draft
		d.TargetTaskID = ""
	case model.ActionEdit:
		patch := &model.TaskPatch{
			Title:             args.Title,
			Description:       args.Description,
			DueDate:           due,
			LocationDependent: args.LocationDependent,
			WeatherDependent:  args.WeatherDependent,
			TimeDependent:     args.TimeDependent,
		}
		if args.Category != nil {
			c := model.Category(*args.Category)
			patch.Category = &c
		}
		if args.Priority != nil {
			p := model.Priority(*args.Priority)
			patch.Priority = &p
		}
		if args.Status != nil {
			s := model.Status(*args.Status)
			patch.Status = &s
		}
		d.Patch = patch
	}

	return d, d.Validate()
}

type searchArgs struct {
	Keyword string `json:"keyword"`
}

func parseSearch(raw json.RawMessage) (string, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("decoding %s input: %w", SearchToolName, err)
	}
	return strings.TrimSpace(args.Keyword), nil
}

func deref(b *bool) bool {
	return b != nil && *b
}
