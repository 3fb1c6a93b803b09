package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/taskradar/internal/ai"
	"github.com/nhle/taskradar/internal/apperr"
	"github.com/nhle/taskradar/internal/metrics"
	"github.com/nhle/taskradar/internal/model"
)

// Store is everything the processor touches.
type Store interface {
	ContextStore
	TaskWriter
	GetUnprocessedNotifications(ctx context.Context, limit int) ([]model.Notification, error)
}

// Config bounds one processing cycle.
type Config struct {
	BatchSize       int
	DecisionTimeout time.Duration
}

// Summary counts the outcomes of one cycle.
type Summary struct {
	Processed int
	Failed    int
}

// Processor runs the notification batch cycle.
type Processor struct {
	store     Store
	assembler *Assembler
	decider   ai.Decider
	executor  *Executor
	guard     *DuplicateGuard
	cfg       Config
	log       logrus.FieldLogger
}

// NewProcessor wires the assembler, guard and executor around store.
func NewProcessor(
	store Store,
	decider ai.Decider,
	guard *DuplicateGuard,
	cfg Config,
	log logrus.FieldLogger,
	now func() time.Time,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = 30 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Processor{
		store:     store,
		assembler: NewAssembler(store, now),
		decider:   decider,
		executor:  NewExecutor(store, guard, log, now),
		guard:     guard,
		cfg:       cfg,
		log:       log,
	}
}

// RunCycle processes one batch of unprocessed notifications, newest first.
// A failing notification is logged and left for the next cycle; only a
// failure to load the batch or a missing decision model is returned.
func (p *Processor) RunCycle(ctx context.Context) (Summary, error) {
	var summary Summary

	batch, err := p.store.GetUnprocessedNotifications(ctx, p.cfg.BatchSize)
	if err != nil {
		return summary, apperr.Transient("load unprocessed notifications", err)
	}
	if len(batch) == 0 {
		return summary, nil
	}

	inputs, err := p.assembler.Assemble(ctx, batch)
	if err != nil {
		return summary, err
	}

	for _, in := range inputs {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		err := p.processOne(ctx, in)
		if apperr.Is(err, apperr.KindConfigurationMissing) {
			return summary, err
		}
		if err != nil {
			summary.Failed++
			metrics.DecisionErrors.WithLabelValues(string(apperr.KindOf(err))).Inc()
			p.log.WithError(err).WithFields(logrus.Fields{
				"notification_id": in.Notification.ID,
				"source_app":      in.Notification.SourceApp,
				"kind":            apperr.KindOf(err),
			}).Warn("notification left unprocessed")
			continue
		}
		summary.Processed++
	}

	return summary, nil
}

func (p *Processor) processOne(ctx context.Context, in model.DecisionInput) error {
	if p.guard != nil {
		p.guard.Seed(in.SourceTasks)
	}

	decideCtx, cancel := context.WithTimeout(ctx, p.cfg.DecisionTimeout)
	start := time.Now()
	decisions, err := p.decider.Decide(decideCtx, in)
	metrics.DecisionDuration.Observe(time.Since(start).Seconds())
	cancel()
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		return apperr.Validation("decide", "no decision returned")
	}

	logger := p.log.WithField("notification_id", in.Notification.ID)
	for _, extra := range decisions[1:] {
		logger.WithFields(logrus.Fields{
			"action":         extra.Action,
			"target_task_id": extra.TargetTaskID,
		}).Warn("ignoring extra decision")
	}

	d := decisions[0]
	if err := ValidateDecision(in, d); err != nil {
		return err
	}

	res, err := p.executor.Apply(ctx, in.Notification, d)
	if err != nil {
		return err
	}

	metrics.NotificationsProcessed.WithLabelValues(string(res.Action)).Inc()
	fields := logrus.Fields{"action": res.Action}
	if res.RelatedTaskID != nil {
		fields["task_id"] = *res.RelatedTaskID
	}
	if res.SkipReason != nil {
		fields["skip_reason"] = *res.SkipReason
	}
	if d.Reason != "" {
		fields["reason"] = d.Reason
	}
	logger.WithFields(fields).Info("notification processed")
	return nil
}
