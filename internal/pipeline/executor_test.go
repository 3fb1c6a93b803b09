package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

func (f *fixture) executor() *Executor {
	log, _ := test.NewNullLogger()
	return NewExecutor(f.store, f.guard, log, f.clock.Now)
}

func TestApplyComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.store.CreateTask(ctx, model.Task{Title: "Pay rent"})
	require.NoError(t, err)
	n := f.notify(t, "Bank", "Rent paid")

	res, err := f.executor().Apply(ctx, *n, model.Decision{
		Action:       model.ActionComplete,
		TargetTaskID: task.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, model.ActionComplete, res.Action)

	got, err := f.store.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(f.clock.Now()))
}

func TestApplyEditIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.executor()

	task, err := f.store.CreateTask(ctx, model.Task{Title: "Dentist", Description: "checkup"})
	require.NoError(t, err)

	title := "Dentist at 3pm"
	prio := model.PriorityHigh
	d := model.Decision{
		Action:       model.ActionEdit,
		TargetTaskID: task.ID,
		Patch:        &model.TaskPatch{Title: &title, Priority: &prio},
	}

	var states []model.Task
	for _, content := range []string{"moved to 3pm", "moved to 3pm (resent)"} {
		n := f.notify(t, "Calendar", content)
		_, err := e.Apply(ctx, *n, d)
		require.NoError(t, err)

		got, err := f.store.GetTaskByID(ctx, task.ID)
		require.NoError(t, err)
		states = append(states, *got)
	}

	assert.Equal(t, states[0].Title, states[1].Title)
	assert.Equal(t, states[0].Description, states[1].Description)
	assert.Equal(t, states[0].Priority, states[1].Priority)
	assert.Equal(t, states[0].Status, states[1].Status)
	assert.Equal(t, "checkup", states[1].Description)
}

func TestApplyIgnoreRecordsSkipReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.notify(t, "Instagram", "Someone liked your photo")
	res, err := f.executor().Apply(ctx, *n, model.Decision{Action: model.ActionIgnore, Reason: "social"})
	require.NoError(t, err)
	assert.Nil(t, res.RelatedTaskID)

	got, err := f.store.GetNotificationByID(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.Processed)
	require.NotNil(t, got.SkipReason)
	assert.Equal(t, model.SkipReasonIgnored, *got.SkipReason)
}

func TestApplyDeleteMissingTaskFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n := f.notify(t, "Calendar", "cancelled")
	_, err := f.executor().Apply(ctx, *n, model.Decision{Action: model.ActionDelete, TargetTaskID: "gone"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	got, err := f.store.GetNotificationByID(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, got.Processed)
}

func TestApplyDeleteSoftDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.store.CreateTask(ctx, model.Task{Title: "Team lunch"})
	require.NoError(t, err)
	n := f.notify(t, "Calendar", "Team lunch cancelled")

	_, err = f.executor().Apply(ctx, *n, model.Decision{Action: model.ActionDelete, TargetTaskID: task.ID})
	require.NoError(t, err)

	_, err = f.store.GetTaskByID(ctx, task.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestValidateDecision(t *testing.T) {
	in := model.DecisionInput{
		SourceTasks: []model.Task{{ID: "t-1"}},
		ActiveTasks: []model.Task{{ID: "t-2"}},
	}

	tests := []struct {
		name    string
		d       model.Decision
		wantErr bool
	}{
		{name: "complete source task", d: model.Decision{Action: model.ActionComplete, TargetTaskID: "t-1"}},
		{name: "delete active task", d: model.Decision{Action: model.ActionDelete, TargetTaskID: "t-2"}},
		{name: "unknown target", d: model.Decision{Action: model.ActionDelete, TargetTaskID: "t-9"}, wantErr: true},
		{name: "create", d: create("x")},
		{name: "create without title", d: model.Decision{Action: model.ActionCreate}, wantErr: true},
		{name: "ignore", d: model.Decision{Action: model.ActionIgnore}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDecision(in, tt.d)
			if tt.wantErr {
				assert.True(t, apperr.Is(err, apperr.KindValidation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDuplicateGuardWindow(t *testing.T) {
	clock := testutilClock()
	g := NewDuplicateGuard(10*time.Minute, clock.Now)

	g.Remember("WhatsApp", "Buy Milk!", "t-1")

	id, ok := g.Check("WhatsApp", "  buy   milk ")
	assert.True(t, ok)
	assert.Equal(t, "t-1", id)

	_, ok = g.Check("Slack", "buy milk")
	assert.False(t, ok)

	clock.Advance(11 * time.Minute)
	_, ok = g.Check("WhatsApp", "buy milk")
	assert.False(t, ok)
}

func TestDuplicateGuardSeed(t *testing.T) {
	clock := testutilClock()
	g := NewDuplicateGuard(10*time.Minute, clock.Now)
	app := "Gmail"

	g.Seed([]model.Task{
		{ID: "fresh", Title: "Pay invoice", SourceApp: &app, CreatedAt: clock.Now().Add(-2 * time.Minute)},
		{ID: "stale", Title: "Old thing", SourceApp: &app, CreatedAt: clock.Now().Add(-time.Hour)},
		{ID: "gone", Title: "Deleted", SourceApp: &app, IsDeleted: true, CreatedAt: clock.Now()},
	})

	id, ok := g.Check(app, "pay invoice")
	assert.True(t, ok)
	assert.Equal(t, "fresh", id)

	_, ok = g.Check(app, "old thing")
	assert.False(t, ok)
	_, ok = g.Check(app, "deleted")
	assert.False(t, ok)
}

func TestApplyCreateAfterDeleteIsNotDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.executor()

	first, err := e.Apply(ctx, *f.notify(t, "WhatsApp", "Buy milk"), create("Buy milk"))
	require.NoError(t, err)
	require.NotNil(t, first.RelatedTaskID)

	_, err = e.Apply(ctx, *f.notify(t, "WhatsApp", "never mind"), model.Decision{
		Action:       model.ActionDelete,
		TargetTaskID: *first.RelatedTaskID,
	})
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	again, err := e.Apply(ctx, *f.notify(t, "WhatsApp", "Buy milk after all"), create("Buy milk"))
	require.NoError(t, err)
	assert.Equal(t, model.ActionCreate, again.Action)
	require.NotNil(t, again.RelatedTaskID)
	assert.NotEqual(t, *first.RelatedTaskID, *again.RelatedTaskID)

	got, err := f.store.GetTaskByID(ctx, *again.RelatedTaskID)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)
}

func TestApplyCreateAfterOutOfBandDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.executor()

	first, err := e.Apply(ctx, *f.notify(t, "Slack", "Review PR"), create("Review PR"))
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteTask(ctx, *first.RelatedTaskID, f.clock.Now()))

	again, err := e.Apply(ctx, *f.notify(t, "Slack", "Review PR please"), create("review pr"))
	require.NoError(t, err)
	assert.Equal(t, model.ActionCreate, again.Action)
	assert.Nil(t, again.SkipReason)

	_, ok := f.guard.Check("Slack", "Review PR")
	assert.True(t, ok)
}

func TestApplyCreateDuplicateOfLiveTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.executor()

	first, err := e.Apply(ctx, *f.notify(t, "Slack", "Review PR"), create("Review PR"))
	require.NoError(t, err)

	dup, err := e.Apply(ctx, *f.notify(t, "Slack", "Review PR!"), create("Review PR!"))
	require.NoError(t, err)
	assert.Equal(t, model.ActionIgnore, dup.Action)
	require.NotNil(t, dup.SkipReason)
	assert.Equal(t, model.SkipReasonDuplicate, *dup.SkipReason)
	assert.Equal(t, *first.RelatedTaskID, *dup.RelatedTaskID)
}

func TestDuplicateGuardForget(t *testing.T) {
	g := NewDuplicateGuard(10*time.Minute, testutilClock().Now)

	g.Remember("WhatsApp", "Buy milk", "t-1")
	g.Forget("WhatsApp", "buy  milk!")

	_, ok := g.Check("WhatsApp", "Buy milk")
	assert.False(t, ok)
}
