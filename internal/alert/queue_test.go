package alert

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskradar/internal/model"
)

func TestDrainEmpties(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	q.Enqueue(
		model.Alert{ID: "a1", Timestamp: now},
		model.Alert{ID: "a2", Timestamp: now},
	)
	require.Equal(t, 2, q.Len())

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "a1", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)

	again := q.Drain()
	assert.NotNil(t, again)
	assert.Empty(t, again)
	assert.Equal(t, 0, q.Len())
}

func TestPurgeDropsExpired(t *testing.T) {
	q := NewQueue()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	q.Enqueue(
		model.Alert{ID: "old", Timestamp: now.Add(-2 * time.Hour)},
		model.Alert{ID: "edge", Timestamp: now.Add(-time.Hour)},
		model.Alert{ID: "fresh", Timestamp: now.Add(-time.Minute)},
	)

	dropped := q.Purge(time.Hour, now)
	assert.Equal(t, 1, dropped)

	got := q.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "edge", got[0].ID)
	assert.Equal(t, "fresh", got[1].ID)
}

func TestConcurrentDrainDeliversOnce(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	const total = 500
	var producers sync.WaitGroup
	for i := range total {
		producers.Add(1)
		go func() {
			defer producers.Done()
			q.Enqueue(model.Alert{ID: fmt.Sprintf("a%d", i), Timestamp: now})
		}()
	}

	var mu sync.Mutex
	ids := map[string]int{}
	record := func(batch []model.Alert) {
		mu.Lock()
		defer mu.Unlock()
		for _, a := range batch {
			ids[a.ID]++
		}
	}

	var consumers sync.WaitGroup
	for range 4 {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			for range 50 {
				record(q.Drain())
			}
		}()
	}

	producers.Wait()
	consumers.Wait()
	record(q.Drain())

	assert.Len(t, ids, total)
	for id, n := range ids {
		assert.Equal(t, 1, n, "alert %s delivered %d times", id, n)
	}
}
