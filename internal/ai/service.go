// Package ai wraps the language models that pick task actions for
// notifications and propose place-search keywords.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/model"
)

// Decider chooses task actions for a notification. The first decision is
// the one to apply; any further decisions are anomalies.
type Decider interface {
	Decide(ctx context.Context, in model.DecisionInput) ([]model.Decision, error)
}

// QueryGenerator proposes a places-search keyword for a task. An empty
// keyword means no place applies.
type QueryGenerator interface {
	ProposeSearch(ctx context.Context, task model.Task) (string, error)
}

// Model is a configured provider serving both strategies.
type Model interface {
	Decider
	QueryGenerator
}

// toolCaller sends one system+user exchange that must be answered with the
// given tool, returning the input of every matching tool call in order.
type toolCaller interface {
	callTool(ctx context.Context, system, user string, tool toolSpec) ([]json.RawMessage, error)
}

// Service implements Model on top of a provider client.
type Service struct {
	caller toolCaller
	log    logrus.FieldLogger
	now    func() time.Time

	// maxRetryInterval caps the wait between transient-failure retries.
	// The caller's context deadline bounds the total.
	maxRetryInterval time.Duration
}

func newService(caller toolCaller, log logrus.FieldLogger) *Service {
	return &Service{
		caller:           caller,
		log:              log,
		now:              time.Now,
		maxRetryInterval: 5 * time.Second,
	}
}

// New builds the Model for cfg. Without an API key it returns Disabled.
func New(cfg model.AIConfig, log logrus.FieldLogger) Model {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newService(NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens), log)
	default:
		return newService(NewAnthropicClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.MaxTokens), log)
	}
}

// Decide asks the model for the action to take on in.Notification.
func (s *Service) Decide(ctx context.Context, in model.DecisionInput) ([]model.Decision, error) {
	user, err := renderDecisionInput(in, s.now())
	if err != nil {
		return nil, err
	}

	raws, err := s.call(ctx, buildDecisionSystemPrompt(), user, decisionTool)
	if err != nil {
		return nil, err
	}
	if len(raws) == 0 {
		return nil, apperr.Validation("decide", "model returned no %s call", DecisionToolName)
	}

	first, err := parseDecision(raws[0])
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "decide", err)
	}

	decisions := []model.Decision{first}
	for _, raw := range raws[1:] {
		d, err := parseDecision(raw)
		if err != nil {
			s.log.WithError(err).Warn("discarding malformed extra decision")
			continue
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// ProposeSearch asks the model for a places-search keyword.
func (s *Service) ProposeSearch(ctx context.Context, task model.Task) (string, error) {
	user, err := renderSearchInput(task)
	if err != nil {
		return "", err
	}

	raws, err := s.call(ctx, buildSearchSystemPrompt(), user, searchTool)
	if err != nil {
		return "", err
	}
	if len(raws) == 0 {
		return "", nil
	}

	keyword, err := parseSearch(raws[0])
	if err != nil {
		return "", apperr.New(apperr.KindValidation, "propose search", err)
	}
	return keyword, nil
}

// call retries transient provider failures with exponential backoff until
// ctx expires. Other failures are returned immediately.
func (s *Service) call(ctx context.Context, system, user string, tool toolSpec) ([]json.RawMessage, error) {
	var out []json.RawMessage
	op := func() error {
		raws, err := s.caller.callTool(ctx, system, user, tool)
		if err == nil {
			out = raws
			return nil
		}
		if apperr.Is(err, apperr.KindTransientIO) && ctx.Err() == nil {
			s.log.WithError(err).WithField("tool", tool.Name).Debug("retrying model call")
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = s.maxRetryInterval
	b.MaxElapsedTime = 0

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperr.Transient(tool.Name, err)
		}
		return nil, err
	}
	return out, nil
}

// Disabled is the Model used when no API key is configured.
type Disabled struct{}

// Decide reports the missing configuration.
func (Disabled) Decide(context.Context, model.DecisionInput) ([]model.Decision, error) {
	return nil, apperr.ConfigurationMissing("decide", "ai.api_key is not set")
}

// ProposeSearch reports the missing configuration.
func (Disabled) ProposeSearch(context.Context, model.Task) (string, error) {
	return "", apperr.ConfigurationMissing("propose search", "ai.api_key is not set")
}
