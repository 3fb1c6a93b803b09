package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

var taskColumns = []string{
	"id", "title", "description", "category", "priority", "status",
	"due_date", "completed_at", "source", "source_app", "is_deleted",
	"location_dependent", "weather_dependent", "time_dependent",
	"created_at", "updated_at",
}

var taskSelect = "SELECT " + strings.Join(taskColumns, ", ") + " FROM tasks"

// allowedTaskSorts are the columns GetTasks may order by.
var allowedTaskSorts = map[string]bool{
	"title":      true,
	"status":     true,
	"priority":   true,
	"category":   true,
	"due_date":   true,
	"created_at": true,
	"updated_at": true,
}

// CreateTask inserts a new task, applying defaults for unset fields.
// Generates a UUID if ID is empty.
func (s *SQLiteStore) CreateTask(ctx context.Context, task model.Task) (*model.Task, error) {
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return nil, apperr.Validation("create task", "task title must not be empty")
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Category == "" {
		task.Category = model.CategoryGeneral
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.Status == "" {
		task.Status = model.StatusPending
	}
	if task.Source == "" {
		task.Source = model.SourceManual
	}
	if !task.Category.Valid() || !task.Priority.Valid() ||
		!task.Status.Valid() || !task.Source.Valid() {
		return nil, apperr.Validation("create task",
			"invalid category/priority/status/source %q/%q/%q/%q",
			task.Category, task.Priority, task.Status, task.Source)
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = task.CreatedAt

	// completed_at is set iff the task is completed.
	if task.Status == model.StatusCompleted {
		if task.CompletedAt == nil {
			task.CompletedAt = &task.UpdatedAt
		}
	} else {
		task.CompletedAt = nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, title, description, category, priority, status,
			due_date, completed_at, source, source_app, is_deleted,
			location_dependent, weather_dependent, time_dependent,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description,
		string(task.Category), string(task.Priority), string(task.Status),
		utcPtr(task.DueDate), utcPtr(task.CompletedAt),
		string(task.Source), task.SourceApp,
		boolToInt(task.LocationDependent), boolToInt(task.WeatherDependent),
		boolToInt(task.TimeDependent),
		utc(task.CreatedAt), utc(task.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	return s.GetTaskByID(ctx, task.ID)
}

// GetTaskByID retrieves a single non-deleted task by its ID.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task, taskSelect+" WHERE id = ? AND is_deleted = 0", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get task", "task %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &task, nil
}

// GetTasks retrieves tasks matching the provided filter options.
func (s *SQLiteStore) GetTasks(ctx context.Context, opts TaskFilter) ([]model.Task, error) {
	q := s.psql.Select(taskColumns...).From("tasks")

	if !opts.IncludeDeleted {
		q = q.Where(sqrl.Eq{"is_deleted": 0})
	}
	if len(opts.Statuses) > 0 {
		statuses := make([]string, 0, len(opts.Statuses))
		for _, st := range opts.Statuses {
			statuses = append(statuses, string(st))
		}
		q = q.Where(sqrl.Eq{"status": statuses})
	}
	if opts.Category != nil {
		q = q.Where(sqrl.Eq{"category": string(*opts.Category)})
	}
	if opts.Priority != nil {
		q = q.Where(sqrl.Eq{"priority": string(*opts.Priority)})
	}
	if opts.SourceApp != nil {
		q = q.Where(sqrl.Eq{"source_app": *opts.SourceApp})
	}
	if opts.CreatedAfter != nil {
		q = q.Where(sqrl.GtOrEq{"created_at": utc(*opts.CreatedAfter)})
	}
	if opts.Query != nil && *opts.Query != "" {
		like := "%" + *opts.Query + "%"
		q = q.Where(sqrl.Or{
			sqrl.Like{"title": like},
			sqrl.Like{"description": like},
		})
	}

	sortBy := "updated_at"
	if allowedTaskSorts[opts.SortBy] {
		sortBy = opts.SortBy
	}
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}
	q = q.OrderBy(sortBy + " " + direction)

	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building tasks query: %w", err)
	}

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// GetRecentTasksBySource returns non-deleted tasks created from sourceApp
// at or after since, newest first.
func (s *SQLiteStore) GetRecentTasksBySource(
	ctx context.Context,
	sourceApp string,
	since time.Time,
	limit int,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks, taskSelect+`
		WHERE is_deleted = 0 AND source_app = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`,
		sourceApp, utc(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying tasks for source %s: %w", sourceApp, err)
	}
	return tasks, nil
}

// GetRecentActiveTasks returns non-deleted pending or in-progress tasks
// created at or after since, regardless of source, newest first.
func (s *SQLiteStore) GetRecentActiveTasks(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks, taskSelect+`
		WHERE is_deleted = 0 AND status IN ('pending', 'in_progress') AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?`,
		utc(since), limit)
	if err != nil {
		return nil, fmt.Errorf("querying active tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask applies a partial update in one statement. Only non-nil patch
// fields are written; updated_at is always refreshed and completed_at
// follows the status.
func (s *SQLiteStore) UpdateTask(
	ctx context.Context,
	id string,
	patch model.TaskPatch,
	now time.Time,
) (*model.Task, error) {
	now = utc(now)
	q := s.psql.Update("tasks").
		Set("updated_at", now).
		Where(sqrl.Eq{"id": id, "is_deleted": 0})

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperr.Validation("update task", "task title must not be empty")
		}
		q = q.Set("title", title)
	}
	if patch.Description != nil {
		q = q.Set("description", *patch.Description)
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, apperr.Validation("update task", "unknown category %q", *patch.Category)
		}
		q = q.Set("category", string(*patch.Category))
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return nil, apperr.Validation("update task", "unknown priority %q", *patch.Priority)
		}
		q = q.Set("priority", string(*patch.Priority))
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperr.Validation("update task", "unknown status %q", *patch.Status)
		}
		q = q.Set("status", string(*patch.Status))
		if *patch.Status == model.StatusCompleted {
			q = q.Set("completed_at", sqrl.Expr("COALESCE(completed_at, ?)", now))
		} else {
			q = q.Set("completed_at", nil)
		}
	}
	if patch.DueDate != nil {
		q = q.Set("due_date", utc(*patch.DueDate))
	}
	if patch.LocationDependent != nil {
		q = q.Set("location_dependent", boolToInt(*patch.LocationDependent))
	}
	if patch.WeatherDependent != nil {
		q = q.Set("weather_dependent", boolToInt(*patch.WeatherDependent))
	}
	if patch.TimeDependent != nil {
		q = q.Set("time_dependent", boolToInt(*patch.TimeDependent))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update for task %s: %w", id, err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, apperr.NotFound("update task", "task %s not found", id)
	}

	return s.GetTaskByID(ctx, id)
}

// CompleteTask marks a task completed. Completing an already completed
// task keeps its original completed_at.
func (s *SQLiteStore) CompleteTask(ctx context.Context, id string, now time.Time) error {
	now = utc(now)
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'completed', completed_at = COALESCE(completed_at, ?), updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("completing task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("complete task", "task %s not found", id)
	}
	return nil
}

// DeleteTask soft-deletes a task. The row is retained for audit.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET is_deleted = 1, updated_at = ?
		WHERE id = ? AND is_deleted = 0`,
		utc(now), id,
	)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("delete task", "task %s not found", id)
	}
	return nil
}
