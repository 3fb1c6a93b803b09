package sync

import (
	"context"
	"sort"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/metrics"
)

// State represents the current state of a scheduled cycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// MarshalText renders the state by name in JSON health reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "running":
		*s = StateRunning
	case "error":
		*s = StateError
	default:
		*s = StateIdle
	}
	return nil
}

// Status holds the run history of a single cycle.
type Status struct {
	Name        string    `json:"name"`
	Schedule    string    `json:"schedule"`
	State       State     `json:"state"`
	Runs        int       `json:"runs"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

// JobFunc is one run of a cycle. Errors are recorded, never propagated.
type JobFunc func(ctx context.Context) error

// defaultJobTimeout is the maximum time allowed for a single run when the
// job does not set its own.
const defaultJobTimeout = 5 * time.Minute

type job struct {
	name    string
	spec    string
	fn      JobFunc
	timeout time.Duration

	// running guards against a triggered run overlapping a scheduled one.
	running gosync.Mutex
}

// Scheduler runs named cycles on cron schedules and on demand.
type Scheduler struct {
	cron     *cron.Cron
	log      logrus.FieldLogger
	now      func() time.Time
	jobs     map[string]*job
	statuses map[string]*Status
	ctx      context.Context
	cancel   context.CancelFunc
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	started  bool
}

// New creates a Scheduler. Overlapping runs of the same cycle are skipped.
func New(log logrus.FieldLogger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:      log,
		now:      time.Now,
		jobs:     make(map[string]*job),
		statuses: make(map[string]*Status),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a named cycle. spec is a cron spec such as "@every 1m".
// A zero timeout uses defaultJobTimeout.
func (s *Scheduler) Register(name, spec string, timeout time.Duration, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return apperr.Validation("register cycle", "cycle %q already registered", name)
	}
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}

	j := &job{name: name, spec: spec, fn: fn, timeout: timeout}
	if _, err := s.cron.AddFunc(spec, func() { s.run(j) }); err != nil {
		return apperr.Validation("register cycle", "invalid schedule %q for %s: %v", spec, name, err)
	}

	s.jobs[name] = j
	s.statuses[name] = &Status{Name: name, Schedule: spec, State: StateIdle}
	s.log.WithFields(logrus.Fields{"cycle": name, "schedule": spec}).Info("scheduled cycle")
	return nil
}

// Start begins running registered cycles on their schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.log.WithField("cycles", len(s.jobs)).Info("scheduler started")
}

// Stop halts scheduling, cancels running cycles and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	started := s.started
	s.started = false
	s.mu.Unlock()

	s.cancel()
	if started {
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// Trigger starts an immediate run of the named cycle in the background.
// The run is skipped if the cycle is already running.
func (s *Scheduler) Trigger(name string) error {
	j, err := s.lookup(name)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(j)
	}()
	return nil
}

// RunNow runs the named cycle synchronously and returns its error.
func (s *Scheduler) RunNow(name string) error {
	j, err := s.lookup(name)
	if err != nil {
		return err
	}
	return s.run(j)
}

// Statuses returns a snapshot of every cycle's status, sorted by name.
func (s *Scheduler) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (s *Scheduler) lookup(name string) (*job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return nil, apperr.NotFound("trigger cycle", "no cycle named %q", name)
	}
	return j, nil
}

// run performs one bounded run and records its outcome.
func (s *Scheduler) run(j *job) error {
	if !j.running.TryLock() {
		s.log.WithField("cycle", j.name).Debug("cycle still running, skipping")
		return nil
	}
	defer j.running.Unlock()

	start := s.now()
	s.setStatus(j.name, func(st *Status) {
		st.State = StateRunning
		st.LastRun = start
	})

	ctx, cancel := context.WithTimeout(s.ctx, j.timeout)
	defer cancel()

	err := j.fn(ctx)
	metrics.ObserveCycle(j.name, start, err)

	s.setStatus(j.name, func(st *Status) {
		st.Runs++
		if err != nil {
			st.State = StateError
			st.LastError = err.Error()
			return
		}
		st.State = StateIdle
		st.LastError = ""
		st.LastSuccess = s.now()
	})

	entry := s.log.WithFields(logrus.Fields{
		"cycle":    j.name,
		"duration": time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("cycle failed")
	} else {
		entry.Debug("cycle finished")
	}
	return err
}

func (s *Scheduler) setStatus(name string, update func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.statuses[name]; ok {
		update(st)
	}
}
