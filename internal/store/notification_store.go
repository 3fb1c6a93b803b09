package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

const notificationColumns = `id, source_app, title, content, timestamp,
	processed, processed_at, related_task_id, skip_reason`

// CreateNotification inserts a new notification. A notification whose ID
// already exists is left untouched and returned as stored.
func (s *SQLiteStore) CreateNotification(
	ctx context.Context,
	n model.Notification,
) (*model.Notification, error) {
	if strings.TrimSpace(n.SourceApp) == "" {
		return nil, apperr.Validation("create notification", "source_app must not be empty")
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	n.Timestamp = utc(n.Timestamp)
	n.Processed = false
	n.ProcessedAt = nil

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, source_app, title, content, timestamp, processed)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(id) DO NOTHING`,
		n.ID, n.SourceApp, n.Title, n.Content, n.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}

	return s.GetNotificationByID(ctx, n.ID)
}

// GetNotificationByID retrieves a single notification.
func (s *SQLiteStore) GetNotificationByID(
	ctx context.Context,
	id string,
) (*model.Notification, error) {
	var n model.Notification
	err := s.db.GetContext(ctx, &n,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get notification", "notification %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return &n, nil
}

// GetUnprocessedNotifications returns up to limit unprocessed
// notifications, newest first.
func (s *SQLiteStore) GetUnprocessedNotifications(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	var out []model.Notification
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE processed = 0
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unprocessed notifications: %w", err)
	}
	return out, nil
}

// GetRecentNotificationsBySource returns other notifications from the same
// source app received at or after since, newest first. Processed
// notifications are included: they are the thread history.
func (s *SQLiteStore) GetRecentNotificationsBySource(
	ctx context.Context,
	sourceApp, excludeID string,
	since time.Time,
	limit int,
) ([]model.Notification, error) {
	var out []model.Notification
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE source_app = ? AND id != ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		sourceApp, excludeID, utc(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications for %s: %w", sourceApp, err)
	}
	return out, nil
}

// MarkNotificationProcessed flags a notification as handled. It only
// transitions unprocessed rows, so a second marker finds nothing to do.
func (s *SQLiteStore) MarkNotificationProcessed(
	ctx context.Context,
	id string,
	relatedTaskID, skipReason *string,
	at time.Time,
) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET processed = 1, processed_at = ?, related_task_id = ?, skip_reason = ?
		WHERE id = ? AND processed = 0`,
		utc(at), relatedTaskID, skipReason, id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s processed: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("mark notification", "unprocessed notification %s not found", id)
	}
	return nil
}

// DeleteNotification removes a notification by ID.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("delete notification", "notification %s not found", id)
	}
	return nil
}

// PurgeProcessedNotifications deletes processed notifications handled
// before the cutoff.
func (s *SQLiteStore) PurgeProcessedNotifications(
	ctx context.Context,
	before time.Time,
) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE processed = 1 AND processed_at < ?",
		utc(before))
	if err != nil {
		return 0, fmt.Errorf("purging processed notifications: %w", err)
	}
	return result.RowsAffected()
}
