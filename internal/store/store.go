package store

import (
	"context"
	"time"

	"github.com/nhle/taskradar/internal/model"
)

// TaskFilter controls filtering, sorting, and pagination for task queries.
// Deleted tasks are excluded unless IncludeDeleted is set.
type TaskFilter struct {
	Statuses       []model.Status
	Category       *model.Category
	Priority       *model.Priority
	SourceApp      *string
	Query          *string
	CreatedAfter   *time.Time
	IncludeDeleted bool
	SortBy         string
	SortDesc       bool
	Limit          int
	Offset         int
}

// NotificationStore persists inbound notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, error)
	GetNotificationByID(ctx context.Context, id string) (*model.Notification, error)
	GetUnprocessedNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	GetRecentNotificationsBySource(
		ctx context.Context,
		sourceApp, excludeID string,
		since time.Time,
		limit int,
	) ([]model.Notification, error)
	MarkNotificationProcessed(
		ctx context.Context,
		id string,
		relatedTaskID, skipReason *string,
		at time.Time,
	) error
	DeleteNotification(ctx context.Context, id string) error
	PurgeProcessedNotifications(ctx context.Context, before time.Time) (int64, error)
}

// TaskStore persists tasks. Every conditional write is a single statement.
type TaskStore interface {
	CreateTask(ctx context.Context, task model.Task) (*model.Task, error)
	GetTaskByID(ctx context.Context, id string) (*model.Task, error)
	GetTasks(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	GetRecentTasksBySource(
		ctx context.Context,
		sourceApp string,
		since time.Time,
		limit int,
	) ([]model.Task, error)
	GetRecentActiveTasks(ctx context.Context, since time.Time, limit int) ([]model.Task, error)
	UpdateTask(ctx context.Context, id string, patch model.TaskPatch, now time.Time) (*model.Task, error)
	CompleteTask(ctx context.Context, id string, now time.Time) error
	DeleteTask(ctx context.Context, id string, now time.Time) error
}

// LocationStore persists candidate places and the pending/no-results markers.
type LocationStore interface {
	GetTasksNeedingLocation(ctx context.Context, limit int) ([]model.Task, error)
	SetPendingLocationQuery(ctx context.Context, taskID, query string, now time.Time) (bool, error)
	GetPendingLocationQueries(ctx context.Context) ([]model.TaskLocation, error)
	ClaimPendingLocationQuery(ctx context.Context, markerID string) (bool, error)
	CountResolvedLocations(ctx context.Context, taskID string) (int, error)
	ReplaceTaskLocations(ctx context.Context, taskID string, locations []model.TaskLocation) error
	MarkNoResults(ctx context.Context, taskID string, now time.Time) error
	GetTaskLocations(ctx context.Context, taskID string) ([]model.TaskLocation, error)
	GetProximityCandidates(ctx context.Context) ([]model.ProximityCandidate, error)
	UpdateLocationDistances(ctx context.Context, distances map[string]int) error
}

// LedgerStore persists the alert cooldown ledger.
type LedgerStore interface {
	AcquireAlertSlot(
		ctx context.Context,
		taskID, notificationType string,
		now time.Time,
		cooldown time.Duration,
	) (bool, error)
	GetLedgerEntry(ctx context.Context, taskID, notificationType string) (*model.LedgerEntry, error)
	GetTasksAlertedSince(ctx context.Context, notificationType string, since time.Time) (map[string]bool, error)
	PurgeLedger(ctx context.Context, before time.Time) (int64, error)
}

// Store defines the full persistence interface.
type Store interface {
	NotificationStore
	TaskStore
	LocationStore
	LedgerStore

	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
