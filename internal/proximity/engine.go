// Package proximity turns position reports into nearby-task alerts.
package proximity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/alert"
	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/metrics"
	"github.com/nhle/taskradar/internal/model"
)

// Store is the persistence the engine needs.
type Store interface {
	GetProximityCandidates(ctx context.Context) ([]model.ProximityCandidate, error)
	UpdateLocationDistances(ctx context.Context, distances map[string]int) error
	GetTasksAlertedSince(ctx context.Context, notificationType string, since time.Time) (map[string]bool, error)
	AcquireAlertSlot(
		ctx context.Context,
		taskID, notificationType string,
		now time.Time,
		cooldown time.Duration,
	) (bool, error)
}

// Resolver materializes pending location queries for a position. It runs
// before every proximity evaluation.
type Resolver interface {
	ResolvePending(ctx context.Context, pos model.Position) error
}

// Config holds the engine thresholds.
type Config struct {
	AlertRadiusM int
	Cooldown     time.Duration
	AlertTTL     time.Duration
}

// Engine evaluates position reports. Reports are processed one at a time.
type Engine struct {
	store    Store
	resolver Resolver
	queue    *alert.Queue
	cfg      Config
	log      logrus.FieldLogger
	now      func() time.Time

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a proximity engine. resolver may be nil, in which case
// pending queries are never resolved.
func NewEngine(
	store Store,
	resolver Resolver,
	queue *alert.Queue,
	cfg Config,
	log logrus.FieldLogger,
	opts ...Option,
) *Engine {
	if cfg.AlertRadiusM <= 0 {
		cfg.AlertRadiusM = 100
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Hour
	}
	if cfg.AlertTTL <= 0 {
		cfg.AlertTTL = 10 * time.Minute
	}
	e := &Engine{
		store:    store,
		resolver: resolver,
		queue:    queue,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report resolves pending location queries around pos, then enqueues an
// alert for every active task with a place inside the alert radius that is
// not cooling down. It returns the number of alerts enqueued.
func (e *Engine) Report(ctx context.Context, pos model.Position) (int, error) {
	if err := pos.Validate(); err != nil {
		return 0, apperr.New(apperr.KindValidation, "position report", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolver != nil {
		if err := e.resolver.ResolvePending(ctx, pos); err != nil {
			e.log.WithError(err).Warn("resolving pending locations")
		}
	}

	sent, err := e.evaluate(ctx, pos)

	if dropped := e.queue.Purge(e.cfg.AlertTTL, e.now()); dropped > 0 {
		metrics.AlertsExpired.Add(float64(dropped))
		e.log.WithField("dropped", dropped).Debug("purged expired alerts")
	}

	return sent, err
}

func (e *Engine) evaluate(ctx context.Context, pos model.Position) (int, error) {
	now := e.now()

	candidates, err := e.store.GetProximityCandidates(ctx)
	if err != nil {
		return 0, apperr.Transient("load proximity candidates", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	distances := make(map[string]int, len(candidates))
	nearest := make(map[string]model.ProximityCandidate)
	for _, c := range candidates {
		d := DistanceMeters(pos.Latitude, pos.Longitude, c.Latitude, c.Longitude)
		c.DistanceMeters = d
		distances[c.ID] = d

		if d <= 0 || d >= e.cfg.AlertRadiusM {
			continue
		}
		if best, ok := nearest[c.TaskID]; !ok || d < best.DistanceMeters {
			nearest[c.TaskID] = c
		}
	}

	if err := e.store.UpdateLocationDistances(ctx, distances); err != nil {
		return 0, apperr.Transient("persist distances", err)
	}
	if len(nearest) == 0 {
		return 0, nil
	}

	cooling, err := e.store.GetTasksAlertedSince(ctx, model.NotificationTypeLocation, now.Add(-e.cfg.Cooldown))
	if err != nil {
		return 0, apperr.Transient("load alert ledger", err)
	}

	inRange := make([]model.ProximityCandidate, 0, len(nearest))
	for taskID, c := range nearest {
		if cooling[taskID] {
			metrics.AlertsSuppressed.Inc()
			continue
		}
		inRange = append(inRange, c)
	}
	sort.Slice(inRange, func(i, j int) bool {
		return inRange[i].DistanceMeters < inRange[j].DistanceMeters
	})

	sent := 0
	for _, c := range inRange {
		ok, err := e.store.AcquireAlertSlot(ctx, c.TaskID, model.NotificationTypeLocation, now, e.cfg.Cooldown)
		if err != nil {
			e.log.WithError(err).WithField("task_id", c.TaskID).Warn("acquiring alert slot")
			continue
		}
		if !ok {
			metrics.AlertsSuppressed.Inc()
			continue
		}

		e.queue.Enqueue(newAlert(c, now))
		metrics.AlertsEnqueued.Inc()
		sent++

		e.log.WithFields(logrus.Fields{
			"task_id":  c.TaskID,
			"location": c.Name,
			"distance": c.DistanceMeters,
		}).Info("proximity alert enqueued")
	}

	return sent, nil
}

func newAlert(c model.ProximityCandidate, now time.Time) model.Alert {
	return model.Alert{
		ID:             uuid.New().String(),
		TaskID:         c.TaskID,
		Title:          fmt.Sprintf("Nearby: %s", c.TaskTitle),
		Body:           fmt.Sprintf("%s is %dm away", c.Name, c.DistanceMeters),
		DistanceMeters: c.DistanceMeters,
		LocationName:   c.Name,
		Timestamp:      now,
	}
}
