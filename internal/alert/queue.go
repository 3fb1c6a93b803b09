package alert

import (
	"sync"
	"time"

	"github.com/nhle/taskradar/internal/model"
)

// Queue is the in-memory outbox of proximity alerts. The client drains it
// by polling; alerts older than the TTL are dropped without being seen.
type Queue struct {
	mu     sync.Mutex
	alerts []model.Alert
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends alerts in order.
func (q *Queue) Enqueue(alerts ...model.Alert) {
	if len(alerts) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.alerts = append(q.alerts, alerts...)
}

// Drain returns every queued alert and empties the queue. Each alert is
// returned to exactly one caller.
func (q *Queue) Drain() []model.Alert {
	q.mu.Lock()
	out := q.alerts
	q.alerts = nil
	q.mu.Unlock()

	if out == nil {
		return []model.Alert{}
	}
	return out
}

// Purge drops alerts whose timestamp is older than maxAge relative to now
// and returns how many were dropped.
func (q *Queue) Purge(maxAge time.Duration, now time.Time) int {
	cutoff := now.Add(-maxAge)

	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.alerts[:0]
	for _, a := range q.alerts {
		if a.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	dropped := len(q.alerts) - len(kept)
	clear(q.alerts[len(kept):])
	q.alerts = kept
	return dropped
}

// Len returns the number of queued alerts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.alerts)
}
