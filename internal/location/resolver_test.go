package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
	"github.com/nhle/taskradar/internal/places"
	"github.com/nhle/taskradar/internal/store"
	"github.com/nhle/taskradar/internal/testutil"
)

var here = model.Position{Latitude: 40.7128, Longitude: -74.0060}

type fakeSearcher struct {
	mu       sync.Mutex
	results  []places.Place
	err      error
	requests []places.SearchRequest
	calls    atomic.Int32
}

func (f *fakeSearcher) Search(_ context.Context, req places.SearchRequest) ([]places.Place, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.results, f.err
}

type fakeGenerator struct {
	query string
	err   error
	calls int
}

func (g *fakeGenerator) ProposeSearch(context.Context, model.Task) (string, error) {
	g.calls++
	return g.query, g.err
}

func rankedPlaces(n int) []places.Place {
	out := make([]places.Place, n)
	for i := range out {
		out[i] = places.Place{
			Name:      fmt.Sprintf("Pharmacy %02d", i),
			Address:   fmt.Sprintf("%d Main St", i),
			Latitude:  40.7128 + float64(i)*0.001,
			Longitude: -74.0060,
			PlaceID:   fmt.Sprintf("place-%d", i),
		}
	}
	return out
}

func newResolver(t *testing.T, gen QueryGenerator, searcher places.Searcher) (*Resolver, *store.SQLiteStore) {
	t.Helper()
	log, _ := test.NewNullLogger()
	s := testutil.NewTestStore(t)
	return NewResolver(s, gen, searcher, Config{
		SearchRadiusM: 2000,
		MaxResults:    10,
		SearchTimeout: time.Second,
	}, log), s
}

func createTask(t *testing.T, s *store.SQLiteStore, title string) *model.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), model.Task{Title: title, LocationDependent: true})
	require.NoError(t, err)
	return task
}

func TestResolvePendingStoresTopResults(t *testing.T) {
	searcher := &fakeSearcher{results: rankedPlaces(12)}
	gen := &fakeGenerator{query: "pharmacy"}
	r, s := newResolver(t, gen, searcher)
	ctx := context.Background()

	task := createTask(t, s, "Pick up prescription")
	require.NoError(t, r.GenerateQueries(ctx))

	pending, err := s.GetPendingLocationQueries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "pharmacy", pending[0].Query())

	require.NoError(t, r.ResolvePending(ctx, here))

	require.Len(t, searcher.requests, 1)
	assert.Equal(t, "pharmacy", searcher.requests[0].Keyword)
	assert.Equal(t, 2000, searcher.requests[0].RadiusM)
	assert.Equal(t, here, searcher.requests[0].Position)

	locs, err := s.GetTaskLocations(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, locs, 10)
	for _, l := range locs {
		assert.False(t, l.IsMarker())
	}

	pending, err = s.GetPendingLocationQueries(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolvePendingZeroResultsIsTerminal(t *testing.T) {
	searcher := &fakeSearcher{results: []places.Place{}}
	gen := &fakeGenerator{query: "locksmith"}
	r, s := newResolver(t, gen, searcher)
	ctx := context.Background()

	task := createTask(t, s, "Copy house key")
	require.NoError(t, r.GenerateQueries(ctx))
	require.NoError(t, r.ResolvePending(ctx, here))

	locs, err := s.GetTaskLocations(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, model.PlaceIDNoResults, locs[0].PlaceID)

	// Later cycles neither regenerate nor search again.
	require.NoError(t, r.GenerateQueries(ctx))
	require.NoError(t, r.ResolvePending(ctx, here))
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, int32(1), searcher.calls.Load())
}

func TestResolvePendingFailureLeavesTaskForRetry(t *testing.T) {
	searcher := &fakeSearcher{err: apperr.Transient("places search", errors.New("timeout"))}
	gen := &fakeGenerator{query: "grocery store"}
	r, s := newResolver(t, gen, searcher)
	ctx := context.Background()

	task := createTask(t, s, "Buy milk")
	require.NoError(t, r.GenerateQueries(ctx))
	require.NoError(t, r.ResolvePending(ctx, here))

	locs, err := s.GetTaskLocations(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, locs)

	require.NoError(t, r.GenerateQueries(ctx))
	assert.Equal(t, 2, gen.calls)

	pending, err := s.GetPendingLocationQueries(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestResolvePendingRestoresQueryWhenUnconfigured(t *testing.T) {
	gen := &fakeGenerator{query: "bank"}
	r, s := newResolver(t, gen, places.Disabled{})
	ctx := context.Background()

	createTask(t, s, "Deposit cheque")
	require.NoError(t, r.GenerateQueries(ctx))

	err := r.ResolvePending(ctx, here)
	assert.True(t, apperr.Is(err, apperr.KindConfigurationMissing))

	pending, err := s.GetPendingLocationQueries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bank", pending[0].Query())
}

func TestResolvePendingSkipsTasksWithLocations(t *testing.T) {
	searcher := &fakeSearcher{results: rankedPlaces(3)}
	r, s := newResolver(t, &fakeGenerator{}, searcher)
	ctx := context.Background()

	task := createTask(t, s, "Buy milk")
	require.NoError(t, s.ReplaceTaskLocations(ctx, task.ID, []model.TaskLocation{
		{Name: "Existing", Latitude: 1, Longitude: 1, PlaceID: "existing"},
		{Name: "Stray marker", Address: "grocery", PlaceID: model.PlaceIDPendingSync},
	}))

	require.NoError(t, r.ResolvePending(ctx, here))
	assert.Equal(t, int32(0), searcher.calls.Load())

	count, err := s.CountResolvedLocations(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestResolvePendingConcurrentClaimsSearchOnce(t *testing.T) {
	searcher := &fakeSearcher{results: rankedPlaces(2)}
	r, s := newResolver(t, &fakeGenerator{query: "pharmacy"}, searcher)
	ctx := context.Background()

	createTask(t, s, "Pick up prescription")
	require.NoError(t, r.GenerateQueries(ctx))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.ResolvePending(ctx, here))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), searcher.calls.Load())
}

func TestGenerateQueriesDeclinedTaskGetsNoResults(t *testing.T) {
	gen := &fakeGenerator{query: ""}
	r, s := newResolver(t, gen, &fakeSearcher{})
	ctx := context.Background()

	task := createTask(t, s, "Think about life")
	require.NoError(t, r.GenerateQueries(ctx))

	locs, err := s.GetTaskLocations(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, model.PlaceIDNoResults, locs[0].PlaceID)
}

func TestGenerateQueriesStopsWhenUnconfigured(t *testing.T) {
	gen := &fakeGenerator{err: apperr.ConfigurationMissing("propose search", "no key")}
	r, s := newResolver(t, gen, &fakeSearcher{})

	createTask(t, s, "A")
	createTask(t, s, "B")

	err := r.GenerateQueries(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindConfigurationMissing))
	assert.Equal(t, 1, gen.calls)
}

func TestKeywordGenerator(t *testing.T) {
	tests := []struct {
		task model.Task
		want string
	}{
		{model.Task{Title: "Pick up prescription"}, "pharmacy"},
		{model.Task{Title: "Buy milk and eggs"}, "grocery store"},
		{model.Task{Title: "Send parcel to mom"}, "post office"},
		{model.Task{Title: "Gift for Anna", Category: model.CategoryShopping}, "store"},
		{model.Task{Title: "Call the bank", Category: model.CategoryCommunication}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.task.Title, func(t *testing.T) {
			got, err := KeywordGenerator{}.ProposeSearch(context.Background(), tt.task)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type stallingGenerator struct {
	stall string
	query string
}

func (g stallingGenerator) ProposeSearch(ctx context.Context, task model.Task) (string, error) {
	if task.Title == g.stall {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return g.query, nil
}

func TestGenerateQueriesBoundsEachCall(t *testing.T) {
	log, _ := test.NewNullLogger()
	s := testutil.NewTestStore(t)
	r := NewResolver(s, stallingGenerator{stall: "Stuck errand", query: "bakery"}, &fakeSearcher{}, Config{
		QueryTimeout: 50 * time.Millisecond,
	}, log)

	createTask(t, s, "Stuck errand")
	createTask(t, s, "Buy bread")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, r.GenerateQueries(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)

	pending, err := s.GetPendingLocationQueries(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "bakery", pending[0].Query())
}
