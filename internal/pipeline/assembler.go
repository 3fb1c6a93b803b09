// Package pipeline turns unprocessed notifications into task mutations.
package pipeline

import (
	"context"
	"time"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

// Context windows handed to the decision collaborator.
const (
	recentNotificationWindow = 24 * time.Hour
	recentNotificationLimit  = 5
	sourceTaskWindow         = 7 * 24 * time.Hour
	sourceTaskLimit          = 20
	activeTaskWindow         = 7 * 24 * time.Hour
	activeTaskLimit          = 50
)

// ContextStore is the read side the assembler needs.
type ContextStore interface {
	GetRecentNotificationsBySource(
		ctx context.Context,
		sourceApp, excludeID string,
		since time.Time,
		limit int,
	) ([]model.Notification, error)
	GetRecentTasksBySource(ctx context.Context, sourceApp string, since time.Time, limit int) ([]model.Task, error)
	GetRecentActiveTasks(ctx context.Context, since time.Time, limit int) ([]model.Task, error)
}

// Assembler builds one DecisionInput per notification. It never writes.
type Assembler struct {
	store ContextStore
	now   func() time.Time
}

// NewAssembler creates an assembler reading from store.
func NewAssembler(store ContextStore, now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{store: store, now: now}
}

// Assemble loads the context for every notification in batch. Source-app
// task lists are loaded once per distinct app and the active pool once for
// the whole batch.
func (a *Assembler) Assemble(ctx context.Context, batch []model.Notification) ([]model.DecisionInput, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	now := a.now()

	active, err := a.store.GetRecentActiveTasks(ctx, now.Add(-activeTaskWindow), activeTaskLimit)
	if err != nil {
		return nil, apperr.Transient("assemble active tasks", err)
	}

	bySource := make(map[string][]model.Task)
	for _, n := range batch {
		if _, ok := bySource[n.SourceApp]; ok {
			continue
		}
		tasks, err := a.store.GetRecentTasksBySource(ctx, n.SourceApp, now.Add(-sourceTaskWindow), sourceTaskLimit)
		if err != nil {
			return nil, apperr.Transient("assemble source tasks", err)
		}
		bySource[n.SourceApp] = tasks
	}

	inputs := make([]model.DecisionInput, 0, len(batch))
	for _, n := range batch {
		recent, err := a.store.GetRecentNotificationsBySource(
			ctx, n.SourceApp, n.ID, now.Add(-recentNotificationWindow), recentNotificationLimit,
		)
		if err != nil {
			return nil, apperr.Transient("assemble recent notifications", err)
		}
		inputs = append(inputs, model.DecisionInput{
			Notification:        n,
			RecentNotifications: recent,
			SourceTasks:         bySource[n.SourceApp],
			ActiveTasks:         active,
		})
	}
	return inputs, nil
}
