package pipeline

import (
	"strings"
	"time"
	"unicode"

	"github.com/patrickmn/go-cache"

	"github.com/nhle/taskradar/internal/model"
)

// DuplicateGuard blocks a CREATE whose normalized title matches a task
// created from the same source app within the window. It is a safety net
// under the collaborator's own duplicate detection.
type DuplicateGuard struct {
	window time.Duration
	seen   *cache.Cache
	now    func() time.Time
}

// NewDuplicateGuard creates a guard remembering titles for window.
func NewDuplicateGuard(window time.Duration, now func() time.Time) *DuplicateGuard {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &DuplicateGuard{
		window: window,
		seen:   cache.New(window, 2*window),
		now:    now,
	}
}

// Seed records recently created tasks from a decision context so the guard
// also covers tasks created before a restart or by another cycle.
func (g *DuplicateGuard) Seed(tasks []model.Task) {
	now := g.now()
	for _, t := range tasks {
		if t.IsDeleted || t.SourceApp == nil {
			continue
		}
		remaining := g.window - now.Sub(t.CreatedAt)
		if remaining <= 0 {
			continue
		}
		key := fingerprint(*t.SourceApp, t.Title)
		if _, found := g.seen.Get(key); !found {
			g.seen.Set(key, entry{taskID: t.ID, at: t.CreatedAt}, remaining)
		}
	}
}

// Check returns the ID of a task with the same title from sourceApp still
// inside the window.
func (g *DuplicateGuard) Check(sourceApp, title string) (string, bool) {
	v, found := g.seen.Get(fingerprint(sourceApp, title))
	if !found {
		return "", false
	}
	e := v.(entry)
	if g.now().Sub(e.at) >= g.window {
		return "", false
	}
	return e.taskID, true
}

// Remember records a freshly created task.
func (g *DuplicateGuard) Remember(sourceApp, title, taskID string) {
	g.seen.Set(fingerprint(sourceApp, title), entry{taskID: taskID, at: g.now()}, cache.DefaultExpiration)
}

// Forget drops the entry for title from sourceApp.
func (g *DuplicateGuard) Forget(sourceApp, title string) {
	g.seen.Delete(fingerprint(sourceApp, title))
}

type entry struct {
	taskID string
	at     time.Time
}

// fingerprint lowercases the title, drops punctuation and collapses
// whitespace, so "Buy milk!" and "buy  milk" collide.
func fingerprint(sourceApp, title string) string {
	var sb strings.Builder
	sb.WriteString(sourceApp)
	sb.WriteByte(0)

	space := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space {
				sb.WriteByte(' ')
				space = false
			}
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			space = sb.Len() > len(sourceApp)+1
		}
	}
	return sb.String()
}
