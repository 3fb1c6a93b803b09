package sync

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/alert"
	"github.com/nhle/taskradar/internal/metrics"
)

// JanitorStore is the persistence the janitor prunes.
type JanitorStore interface {
	PurgeLedger(ctx context.Context, before time.Time) (int64, error)
	PurgeProcessedNotifications(ctx context.Context, before time.Time) (int64, error)
}

// JanitorConfig holds retention windows. Zero disables that purge.
type JanitorConfig struct {
	LedgerRetention       time.Duration
	NotificationRetention time.Duration
	AlertTTL              time.Duration
}

// Janitor prunes stale ledger rows, processed notifications and expired
// alerts.
type Janitor struct {
	store JanitorStore
	queue *alert.Queue
	cfg   JanitorConfig
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewJanitor creates a Janitor. queue may be nil.
func NewJanitor(
	store JanitorStore,
	queue *alert.Queue,
	cfg JanitorConfig,
	log logrus.FieldLogger,
	now func() time.Time,
) *Janitor {
	if now == nil {
		now = time.Now
	}
	return &Janitor{store: store, queue: queue, cfg: cfg, log: log, now: now}
}

// Run performs one pruning pass.
func (j *Janitor) Run(ctx context.Context) error {
	now := j.now()
	fields := logrus.Fields{}

	// LedgerRetention must be at least the alert cooldown.
	if j.cfg.LedgerRetention > 0 {
		n, err := j.store.PurgeLedger(ctx, now.Add(-j.cfg.LedgerRetention))
		if err != nil {
			return err
		}
		fields["ledger_rows"] = n
	}

	if j.cfg.NotificationRetention > 0 {
		n, err := j.store.PurgeProcessedNotifications(ctx, now.Add(-j.cfg.NotificationRetention))
		if err != nil {
			return err
		}
		fields["notifications"] = n
	}

	if j.queue != nil && j.cfg.AlertTTL > 0 {
		n := j.queue.Purge(j.cfg.AlertTTL, now)
		metrics.AlertsExpired.Add(float64(n))
		fields["alerts"] = n
	}

	j.log.WithFields(fields).Debug("janitor pass finished")
	return nil
}
