package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/taskradar/internal/model"
)

const locationColumns = `id, task_id, name, address, latitude, longitude,
	place_id, rating, is_open, distance_meters, created_at`

// GetTasksNeedingLocation returns active location-dependent tasks that have
// no task_locations row at all (no marker, no results).
func (s *SQLiteStore) GetTasksNeedingLocation(
	ctx context.Context,
	limit int,
) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks, taskSelect+`
		WHERE is_deleted = 0
			AND status != 'completed'
			AND location_dependent = 1
			AND NOT EXISTS (SELECT 1 FROM task_locations l WHERE l.task_id = tasks.id)
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tasks needing location: %w", err)
	}
	return tasks, nil
}

// SetPendingLocationQuery stores a PENDING_LOCATION_SYNC marker carrying
// query, but only when the task has no location rows yet. Returns whether
// the marker was written.
func (s *SQLiteStore) SetPendingLocationQuery(
	ctx context.Context,
	taskID, query string,
	now time.Time,
) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO task_locations (id, task_id, name, address, place_id, created_at)
		SELECT ?, ?, '', ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM task_locations WHERE task_id = ?)`,
		uuid.New().String(), taskID, query, model.PlaceIDPendingSync, utc(now), taskID,
	)
	if err != nil {
		return false, fmt.Errorf("storing location query for task %s: %w", taskID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// GetPendingLocationQueries returns the pending-query markers of active tasks.
func (s *SQLiteStore) GetPendingLocationQueries(
	ctx context.Context,
) ([]model.TaskLocation, error) {
	var out []model.TaskLocation
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+locationColumns+`
		FROM task_locations
		WHERE place_id = ?
			AND task_id IN (
				SELECT id FROM tasks WHERE is_deleted = 0 AND status != 'completed'
			)
		ORDER BY created_at`, model.PlaceIDPendingSync)
	if err != nil {
		return nil, fmt.Errorf("querying pending location queries: %w", err)
	}
	return out, nil
}

// ClaimPendingLocationQuery deletes a pending marker. Only the caller whose
// delete removed the row owns the resolution; false means another cycle
// got there first.
func (s *SQLiteStore) ClaimPendingLocationQuery(
	ctx context.Context,
	markerID string,
) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM task_locations WHERE id = ? AND place_id = ?",
		markerID, model.PlaceIDPendingSync)
	if err != nil {
		return false, fmt.Errorf("claiming location query %s: %w", markerID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// CountResolvedLocations counts real (non-marker) locations for a task.
func (s *SQLiteStore) CountResolvedLocations(ctx context.Context, taskID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM task_locations
		WHERE task_id = ? AND place_id NOT IN (?, ?)`,
		taskID, model.PlaceIDPendingSync, model.PlaceIDNoResults)
	if err != nil {
		return 0, fmt.Errorf("counting locations for task %s: %w", taskID, err)
	}
	return count, nil
}

// ReplaceTaskLocations deletes every location row of a task and inserts
// the given ones in a single transaction.
func (s *SQLiteStore) ReplaceTaskLocations(
	ctx context.Context,
	taskID string,
	locations []model.TaskLocation,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM task_locations WHERE task_id = ?", taskID); err != nil {
		return fmt.Errorf("clearing locations for task %s: %w", taskID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO task_locations (
			id, task_id, name, address, latitude, longitude,
			place_id, rating, is_open, distance_meters, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing location insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, loc := range locations {
		if loc.ID == "" {
			loc.ID = uuid.New().String()
		}
		if loc.CreatedAt.IsZero() {
			loc.CreatedAt = now
		}
		var isOpen *int
		if loc.IsOpen != nil {
			v := boolToInt(*loc.IsOpen)
			isOpen = &v
		}
		_, err := stmt.ExecContext(ctx,
			loc.ID, taskID, loc.Name, loc.Address, loc.Latitude, loc.Longitude,
			loc.PlaceID, loc.Rating, isOpen, loc.DistanceMeters, utc(loc.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting location %s for task %s: %w", loc.PlaceID, taskID, err)
		}
	}

	return tx.Commit()
}

// MarkNoResults replaces a task's location rows with a terminal
// NO_RESULTS marker so the task is not searched again.
func (s *SQLiteStore) MarkNoResults(ctx context.Context, taskID string, now time.Time) error {
	return s.ReplaceTaskLocations(ctx, taskID, []model.TaskLocation{{
		TaskID:    taskID,
		PlaceID:   model.PlaceIDNoResults,
		CreatedAt: now,
	}})
}

// GetTaskLocations returns every location row of a task, markers included.
func (s *SQLiteStore) GetTaskLocations(
	ctx context.Context,
	taskID string,
) ([]model.TaskLocation, error) {
	var out []model.TaskLocation
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+locationColumns+`
		FROM task_locations
		WHERE task_id = ?
		ORDER BY distance_meters, name`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying locations for task %s: %w", taskID, err)
	}
	return out, nil
}

// GetProximityCandidates returns resolved locations with real coordinates
// whose task is still active.
func (s *SQLiteStore) GetProximityCandidates(
	ctx context.Context,
) ([]model.ProximityCandidate, error) {
	var out []model.ProximityCandidate
	err := s.db.SelectContext(ctx, &out, `
		SELECT l.id, l.task_id, l.name, l.address, l.latitude, l.longitude,
			l.place_id, l.rating, l.is_open, l.distance_meters, l.created_at,
			t.title AS task_title
		FROM task_locations l
		JOIN tasks t ON t.id = l.task_id
		WHERE t.is_deleted = 0
			AND t.status != 'completed'
			AND l.place_id NOT IN (?, ?)
			AND NOT (l.latitude = 0 AND l.longitude = 0)`,
		model.PlaceIDPendingSync, model.PlaceIDNoResults)
	if err != nil {
		return nil, fmt.Errorf("querying proximity candidates: %w", err)
	}
	return out, nil
}

// UpdateLocationDistances persists distances keyed by location ID.
func (s *SQLiteStore) UpdateLocationDistances(
	ctx context.Context,
	distances map[string]int,
) error {
	if len(distances) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx,
		"UPDATE task_locations SET distance_meters = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("preparing distance update: %w", err)
	}
	defer stmt.Close()

	for id, meters := range distances {
		if _, err := stmt.ExecContext(ctx, meters, id); err != nil {
			return fmt.Errorf("updating distance for location %s: %w", id, err)
		}
	}

	return tx.Commit()
}
