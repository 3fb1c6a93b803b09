// Package location turns location-dependent tasks into candidate places.
//
// Resolution runs in two phases. GenerateQueries asks a QueryGenerator for a
// search keyword and parks it on the task as a PENDING_LOCATION_SYNC marker.
// ResolvePending runs when a position is reported: it claims each marker,
// searches around the position and stores the results.
package location

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/metrics"
	"github.com/nhle/taskradar/internal/model"
	"github.com/nhle/taskradar/internal/places"
)

// Store is the persistence the resolver needs.
type Store interface {
	GetTasksNeedingLocation(ctx context.Context, limit int) ([]model.Task, error)
	SetPendingLocationQuery(ctx context.Context, taskID, query string, now time.Time) (bool, error)
	GetPendingLocationQueries(ctx context.Context) ([]model.TaskLocation, error)
	ClaimPendingLocationQuery(ctx context.Context, markerID string) (bool, error)
	CountResolvedLocations(ctx context.Context, taskID string) (int, error)
	ReplaceTaskLocations(ctx context.Context, taskID string, locations []model.TaskLocation) error
	MarkNoResults(ctx context.Context, taskID string, now time.Time) error
}

// QueryGenerator proposes a places-search keyword for a task. An empty
// keyword with a nil error means the task has no searchable place.
type QueryGenerator interface {
	ProposeSearch(ctx context.Context, task model.Task) (string, error)
}

// Config holds resolver limits.
type Config struct {
	SearchRadiusM int
	MaxResults    int
	SearchTimeout time.Duration

	// QueryTimeout bounds one ProposeSearch call, retries included.
	QueryTimeout time.Duration

	// GenerateBatch caps how many tasks one GenerateQueries cycle visits.
	GenerateBatch int
}

// Resolver implements both resolution phases.
type Resolver struct {
	store     Store
	generator QueryGenerator
	searcher  places.Searcher
	cfg       Config
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewResolver creates a resolver.
func NewResolver(
	store Store,
	generator QueryGenerator,
	searcher places.Searcher,
	cfg Config,
	log logrus.FieldLogger,
) *Resolver {
	if cfg.SearchRadiusM <= 0 {
		cfg.SearchRadiusM = 2000
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 10 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.GenerateBatch <= 0 {
		cfg.GenerateBatch = 20
	}
	return &Resolver{
		store:     store,
		generator: generator,
		searcher:  searcher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// GenerateQueries stores a pending search query for every active
// location-dependent task that has no location rows yet. A task the
// generator declines gets the terminal NO_RESULTS marker.
func (r *Resolver) GenerateQueries(ctx context.Context) error {
	tasks, err := r.store.GetTasksNeedingLocation(ctx, r.cfg.GenerateBatch)
	if err != nil {
		return apperr.Transient("load tasks needing location", err)
	}

	for _, task := range tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger := r.log.WithField("task_id", task.ID)

		queryCtx, cancel := context.WithTimeout(ctx, r.cfg.QueryTimeout)
		query, err := r.generator.ProposeSearch(queryCtx, task)
		cancel()
		if apperr.Is(err, apperr.KindConfigurationMissing) {
			return err
		}
		if err != nil {
			logger.WithError(err).Warn("generating location query")
			continue
		}

		if query == "" {
			if err := r.store.MarkNoResults(ctx, task.ID, r.now()); err != nil {
				logger.WithError(err).Warn("marking task without place")
			}
			continue
		}

		stored, err := r.store.SetPendingLocationQuery(ctx, task.ID, query, r.now())
		if err != nil {
			logger.WithError(err).Warn("storing location query")
			continue
		}
		if stored {
			logger.WithField("query", query).Debug("location query queued")
		}
	}
	return nil
}

// ResolvePending searches around pos for every pending query marker. The
// marker is deleted before searching; a failed search leaves the task with
// no rows so the next GenerateQueries cycle queues it again.
func (r *Resolver) ResolvePending(ctx context.Context, pos model.Position) error {
	markers, err := r.store.GetPendingLocationQueries(ctx)
	if err != nil {
		return apperr.Transient("load pending location queries", err)
	}

	for _, marker := range markers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.resolveOne(ctx, pos, marker); err != nil {
			return err
		}
	}
	return nil
}

// resolveOne handles a single marker. It only returns an error that should
// stop the whole pass.
func (r *Resolver) resolveOne(ctx context.Context, pos model.Position, marker model.TaskLocation) error {
	logger := r.log.WithFields(logrus.Fields{
		"task_id": marker.TaskID,
		"query":   marker.Query(),
	})

	claimed, err := r.store.ClaimPendingLocationQuery(ctx, marker.ID)
	if err != nil {
		logger.WithError(err).Warn("claiming location query")
		return nil
	}
	if !claimed {
		return nil
	}

	existing, err := r.store.CountResolvedLocations(ctx, marker.TaskID)
	if err != nil {
		logger.WithError(err).Warn("counting resolved locations")
		return nil
	}
	if existing > 0 {
		return nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, r.cfg.SearchTimeout)
	results, err := r.searcher.Search(searchCtx, places.SearchRequest{
		Position: pos,
		RadiusM:  r.cfg.SearchRadiusM,
		Keyword:  marker.Query(),
	})
	cancel()

	if apperr.Is(err, apperr.KindConfigurationMissing) {
		// Put the query back; nothing can be resolved until configured.
		if _, restoreErr := r.store.SetPendingLocationQuery(ctx, marker.TaskID, marker.Query(), r.now()); restoreErr != nil {
			logger.WithError(restoreErr).Warn("restoring location query")
		}
		return err
	}
	if err != nil {
		metrics.PlacesSearches.WithLabelValues("error").Inc()
		logger.WithError(err).Warn("places search failed")
		return nil
	}

	if len(results) == 0 {
		metrics.PlacesSearches.WithLabelValues("no_results").Inc()
		if err := r.store.MarkNoResults(ctx, marker.TaskID, r.now()); err != nil {
			logger.WithError(err).Warn("marking no results")
		}
		return nil
	}

	if len(results) > r.cfg.MaxResults {
		results = results[:r.cfg.MaxResults]
	}
	now := r.now()
	locations := make([]model.TaskLocation, 0, len(results))
	for _, p := range results {
		loc := p.ToLocation(marker.TaskID)
		loc.CreatedAt = now
		locations = append(locations, loc)
	}

	if err := r.store.ReplaceTaskLocations(ctx, marker.TaskID, locations); err != nil {
		logger.WithError(err).Warn("storing resolved locations")
		return nil
	}

	metrics.PlacesSearches.WithLabelValues("results").Inc()
	logger.WithField("count", len(locations)).Info("resolved task locations")
	return nil
}
