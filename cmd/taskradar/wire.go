package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nhle/taskradar/internal/ai"
	"github.com/nhle/taskradar/internal/credential"
	"github.com/nhle/taskradar/internal/location"
	"github.com/nhle/taskradar/internal/pipeline"
	"github.com/nhle/taskradar/internal/places"
	"github.com/nhle/taskradar/internal/source/email"
	"github.com/nhle/taskradar/internal/store"
)

func (a *app) openStore() (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return store.NewSQLiteStore(a.cfg.DBPath)
}

// secret resolves a credential from config, then env, then the keyring.
// Keyring failures degrade to an empty value.
func (a *app) secret(configured, envVar, key string) string {
	v, err := credential.Resolve(configured, envVar, key)
	if err != nil {
		a.log.WithError(err).WithField("key", key).Warn("reading credential from keyring")
		return ""
	}
	return v
}

// aiModel builds the decision model. The bool reports whether a real
// provider is configured.
func (a *app) aiModel() (ai.Model, bool) {
	cfg := a.cfg.AI
	envVar := "ANTHROPIC_API_KEY"
	if strings.EqualFold(cfg.Provider, "openai") {
		envVar = "OPENAI_API_KEY"
	}
	cfg.APIKey = a.secret(cfg.APIKey, envVar, credential.KeyAIAPIKey)

	m := ai.New(cfg, a.log)
	if _, disabled := m.(ai.Disabled); disabled {
		a.log.Warn("no AI API key configured; notifications will not be processed")
		return m, false
	}
	return m, true
}

func (a *app) searcher() places.Searcher {
	key := a.secret(a.cfg.Places.APIKey, "GOOGLE_PLACES_API_KEY", credential.KeyPlacesAPIKey)
	if key == "" {
		a.log.Warn("no places API key configured; location resolution is disabled")
		return places.Disabled{}
	}
	return places.NewGoogleClient(a.cfg.Places.BaseURL, key, a.cfg.Location.SearchTimeout)
}

func (a *app) resolver(st *store.SQLiteStore, m ai.Model, aiEnabled bool) *location.Resolver {
	var gen location.QueryGenerator = location.KeywordGenerator{}
	if aiEnabled {
		gen = m
	}
	return location.NewResolver(st, gen, a.searcher(), location.Config{
		SearchRadiusM: a.cfg.Location.SearchRadiusM,
		MaxResults:    a.cfg.Location.MaxResults,
		SearchTimeout: a.cfg.Location.SearchTimeout,
		QueryTimeout:  a.cfg.Pipeline.DecisionTimeout,
	}, a.log)
}

func (a *app) processor(st *store.SQLiteStore, decider ai.Decider) *pipeline.Processor {
	guard := pipeline.NewDuplicateGuard(a.cfg.Pipeline.DedupWindow, time.Now)
	return pipeline.NewProcessor(st, decider, guard, pipeline.Config{
		BatchSize:       a.cfg.Pipeline.BatchSize,
		DecisionTimeout: a.cfg.Pipeline.DecisionTimeout,
	}, a.log, time.Now)
}

func (a *app) emailIngestor(st *store.SQLiteStore) *email.Ingestor {
	c := a.cfg.Email
	password := a.secret(c.Password, "IMAP_PASSWORD", credential.KeyEmailPassword)
	client := email.NewIMAPClient(c.Host, c.Port, c.Username, password, c.TLS, c.Mailbox)
	return email.NewIngestor(client, st, a.log, time.Now)
}
