package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

// AcquireAlertSlot records that an alert of notificationType is being sent
// for taskID, but only if no alert was recorded within cooldown of now.
// The check and the write are one statement, so two concurrent evaluations
// cannot both acquire the slot.
func (s *SQLiteStore) AcquireAlertSlot(
	ctx context.Context,
	taskID, notificationType string,
	now time.Time,
	cooldown time.Duration,
) (bool, error) {
	now = utc(now)
	var count int
	err := s.db.GetContext(ctx, &count, `
		INSERT INTO notification_ledger (task_id, notification_type, last_sent_time, notification_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(task_id, notification_type) DO UPDATE SET
			last_sent_time = excluded.last_sent_time,
			notification_count = notification_ledger.notification_count + 1
		WHERE notification_ledger.last_sent_time <= ?
		RETURNING notification_count`,
		taskID, notificationType, now, now.Add(-cooldown),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquiring alert slot for task %s: %w", taskID, err)
	}
	return true, nil
}

// GetLedgerEntry returns the ledger row for a (task, type) pair.
func (s *SQLiteStore) GetLedgerEntry(
	ctx context.Context,
	taskID, notificationType string,
) (*model.LedgerEntry, error) {
	var entry model.LedgerEntry
	err := s.db.GetContext(ctx, &entry, `
		SELECT task_id, notification_type, last_sent_time, notification_count
		FROM notification_ledger
		WHERE task_id = ? AND notification_type = ?`,
		taskID, notificationType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get ledger entry",
			"no %s ledger entry for task %s", notificationType, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting ledger entry for task %s: %w", taskID, err)
	}
	return &entry, nil
}

// GetTasksAlertedSince returns the set of task IDs alerted after since.
func (s *SQLiteStore) GetTasksAlertedSince(
	ctx context.Context,
	notificationType string,
	since time.Time,
) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, `
		SELECT task_id FROM notification_ledger
		WHERE notification_type = ? AND last_sent_time > ?`,
		notificationType, utc(since))
	if err != nil {
		return nil, fmt.Errorf("querying %s ledger: %w", notificationType, err)
	}

	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// PurgeLedger deletes ledger rows last sent before the cutoff.
func (s *SQLiteStore) PurgeLedger(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM notification_ledger WHERE last_sent_time < ?", utc(before))
	if err != nil {
		return 0, fmt.Errorf("purging notification ledger: %w", err)
	}
	return result.RowsAffected()
}
