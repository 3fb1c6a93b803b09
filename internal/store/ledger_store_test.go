package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
	"github.com/nhle/taskradar/internal/testutil"
)

func TestAcquireAlertSlotCooldown(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cooldown := time.Hour

	tests := []struct {
		name   string
		offset time.Duration
		want   bool
		count  int
	}{
		{name: "first alert", offset: 0, want: true, count: 1},
		{name: "within cooldown", offset: 10 * time.Minute, want: false, count: 1},
		{name: "just before expiry", offset: 59 * time.Minute, want: false, count: 1},
		{name: "after cooldown", offset: 61 * time.Minute, want: true, count: 2},
		{name: "within new cooldown", offset: 90 * time.Minute, want: false, count: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := s.AcquireAlertSlot(ctx, "task-1", model.NotificationTypeLocation,
				start.Add(tt.offset), cooldown)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)

			entry, err := s.GetLedgerEntry(ctx, "task-1", model.NotificationTypeLocation)
			require.NoError(t, err)
			assert.Equal(t, tt.count, entry.NotificationCount)
		})
	}
}

func TestAcquireAlertSlotConcurrent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	var acquired atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.AcquireAlertSlot(ctx, "task-1", model.NotificationTypeLocation, now, time.Hour)
			assert.NoError(t, err)
			if ok {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}

func TestGetLedgerEntryMissing(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.GetLedgerEntry(context.Background(), "nope", model.NotificationTypeLocation)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestTasksAlertedSinceAndPurge(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.AcquireAlertSlot(ctx, "recent", model.NotificationTypeLocation, now.Add(-10*time.Minute), time.Hour)
	require.NoError(t, err)
	_, err = s.AcquireAlertSlot(ctx, "old", model.NotificationTypeLocation, now.Add(-25*time.Hour), time.Hour)
	require.NoError(t, err)

	alerted, err := s.GetTasksAlertedSince(ctx, model.NotificationTypeLocation, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"recent": true}, alerted)

	purged, err := s.PurgeLedger(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = s.GetLedgerEntry(ctx, "old", model.NotificationTypeLocation)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
