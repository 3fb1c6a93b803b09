package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

// TaskWriter is the write side the executor needs.
type TaskWriter interface {
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch, now time.Time) (*model.Task, error)
	CompleteTask(ctx context.Context, id string, now time.Time) error
	DeleteTask(ctx context.Context, id string, now time.Time) error
	MarkNotificationProcessed(
		ctx context.Context,
		id string,
		relatedTaskID, skipReason *string,
		at time.Time,
	) error
}

// Result describes what Apply did.
type Result struct {
	Action        model.Action
	RelatedTaskID *string
	SkipReason    *string
}

// Executor applies a validated decision and then marks the notification
// processed. The task mutation always commits first, so a crash in
// between leaves the notification to be decided again.
type Executor struct {
	store TaskWriter
	guard *DuplicateGuard
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewExecutor creates an executor. guard may be nil.
func NewExecutor(store TaskWriter, guard *DuplicateGuard, log logrus.FieldLogger, now func() time.Time) *Executor {
	if now == nil {
		now = time.Now
	}
	return &Executor{store: store, guard: guard, log: log, now: now}
}

// Apply performs d for n. On error the notification is left unprocessed.
func (e *Executor) Apply(ctx context.Context, n model.Notification, d model.Decision) (Result, error) {
	now := e.now()
	res := Result{Action: d.Action}

	switch d.Action {
	case model.ActionCreate:
		dupID, ok, err := e.checkDuplicate(ctx, n, d.Task.Title)
		if err != nil {
			return Result{}, err
		}
		if ok {
			res.Action = model.ActionIgnore
			res.RelatedTaskID = &dupID
			res.SkipReason = strPtr(model.SkipReasonDuplicate)
			break
		}
		task, err := e.store.CreateTask(ctx, draftToTask(n, *d.Task, now))
		if err != nil {
			return Result{}, err
		}
		if e.guard != nil {
			e.guard.Remember(n.SourceApp, task.Title, task.ID)
		}
		res.RelatedTaskID = &task.ID

	case model.ActionEdit:
		if _, err := e.store.UpdateTask(ctx, d.TargetTaskID, *d.Patch, now); err != nil {
			return Result{}, err
		}
		res.RelatedTaskID = strPtr(d.TargetTaskID)

	case model.ActionComplete:
		if err := e.store.CompleteTask(ctx, d.TargetTaskID, now); err != nil {
			return Result{}, err
		}
		res.RelatedTaskID = strPtr(d.TargetTaskID)

	case model.ActionDelete:
		task, err := e.store.GetTaskByID(ctx, d.TargetTaskID)
		if err != nil {
			return Result{}, err
		}
		if err := e.store.DeleteTask(ctx, d.TargetTaskID, now); err != nil {
			return Result{}, err
		}
		if e.guard != nil && task.SourceApp != nil {
			e.guard.Forget(*task.SourceApp, task.Title)
		}
		res.RelatedTaskID = strPtr(d.TargetTaskID)

	case model.ActionIgnore:
		res.SkipReason = strPtr(model.SkipReasonIgnored)

	default:
		return Result{}, apperr.Validation("apply decision", "unknown action %q", d.Action)
	}

	err := e.store.MarkNotificationProcessed(ctx, n.ID, res.RelatedTaskID, res.SkipReason, now)
	if apperr.Is(err, apperr.KindNotFound) {
		// Another cycle finished this notification first.
		e.log.WithField("notification_id", n.ID).Warn("notification already processed")
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// checkDuplicate reports a live task matching title. Entries whose task was
// deleted elsewhere (API, CLI) are dropped.
func (e *Executor) checkDuplicate(ctx context.Context, n model.Notification, title string) (string, bool, error) {
	if e.guard == nil {
		return "", false, nil
	}
	dupID, ok := e.guard.Check(n.SourceApp, title)
	if !ok {
		return "", false, nil
	}
	_, err := e.store.GetTaskByID(ctx, dupID)
	if apperr.Is(err, apperr.KindNotFound) {
		e.guard.Forget(n.SourceApp, title)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return dupID, true, nil
}

// draftToTask applies the notification defaults to a CREATE payload.
func draftToTask(n model.Notification, draft model.TaskDraft, now time.Time) model.Task {
	task := model.Task{
		Title:             strings.TrimSpace(draft.Title),
		Description:       draft.Description,
		Category:          draft.Category,
		Priority:          draft.Priority,
		Status:            model.StatusPending,
		DueDate:           draft.DueDate,
		Source:            model.SourceNotification,
		SourceApp:         strPtr(n.SourceApp),
		LocationDependent: draft.LocationDependent,
		WeatherDependent:  draft.WeatherDependent,
		TimeDependent:     draft.TimeDependent,
		CreatedAt:         now,
	}
	if task.Category == "" {
		task.Category = model.CategoryGeneral
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	return task
}

// ValidateDecision checks d structurally and confirms that any target task
// was part of the context the collaborator was shown.
func ValidateDecision(in model.DecisionInput, d model.Decision) error {
	if err := d.Validate(); err != nil {
		return apperr.New(apperr.KindValidation, "validate decision", err)
	}
	if d.Action.NeedsTarget() && !in.HasTask(d.TargetTaskID) {
		return apperr.Validation("validate decision",
			"%s targets task %s which is not in the supplied context", d.Action, d.TargetTaskID)
	}
	return nil
}

func strPtr(s string) *string { return &s }
