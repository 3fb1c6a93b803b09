package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskradar/internal/alert"
	"github.com/nhle/taskradar/internal/proximity"
	"github.com/nhle/taskradar/internal/server"
	tsync "github.com/nhle/taskradar/internal/sync"
)

// Cycle names, as reported by /healthz.
const (
	cyclePipeline = "pipeline"
	cycleLocation = "location"
	cycleJanitor  = "janitor"
	cycleEmail    = "email"
)

type cycle struct {
	name    string
	spec    string
	timeout time.Duration
	fn      tsync.JobFunc
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background cycles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	cfg := a.cfg
	if cfg.Ledger.Retention < cfg.Proximity.Cooldown {
		a.log.WithField("cooldown", cfg.Proximity.Cooldown).
			Warn("ledger retention shorter than the alert cooldown; raising it")
		cfg.Ledger.Retention = cfg.Proximity.Cooldown
	}

	m, aiEnabled := a.aiModel()
	resolver := a.resolver(st, m, aiEnabled)
	processor := a.processor(st, m)

	queue := alert.NewQueue()
	engine := proximity.NewEngine(st, resolver, queue, proximity.Config{
		AlertRadiusM: cfg.Proximity.AlertRadiusM,
		Cooldown:     cfg.Proximity.Cooldown,
		AlertTTL:     cfg.Alerts.TTL,
	}, a.log)

	janitor := tsync.NewJanitor(st, queue, tsync.JanitorConfig{
		LedgerRetention:       cfg.Ledger.Retention,
		NotificationRetention: cfg.Ledger.NotificationRetention,
		AlertTTL:              cfg.Alerts.TTL,
	}, a.log, time.Now)

	sched := tsync.New(a.log)
	cycles := []cycle{
		{cyclePipeline, cfg.Pipeline.Schedule, 0, func(ctx context.Context) error {
			_, err := processor.RunCycle(ctx)
			return err
		}},
		{cycleLocation, cfg.Location.Schedule, 0, resolver.GenerateQueries},
		{cycleJanitor, cfg.Ledger.Schedule, time.Minute, janitor.Run},
	}
	if cfg.Email.Enabled {
		ingestor := a.emailIngestor(st)
		cycles = append(cycles, cycle{cycleEmail, cfg.Email.Schedule, 2 * time.Minute, func(ctx context.Context) error {
			if err := ingestor.Run(ctx); err != nil {
				return err
			}
			return sched.Trigger(cyclePipeline)
		}})
	}
	for _, c := range cycles {
		if err := sched.Register(c.name, c.spec, c.timeout, c.fn); err != nil {
			return err
		}
	}

	sched.Start()
	defer sched.Stop()

	router := server.NewRouter(server.Deps{
		Store:    st,
		Reporter: engine,
		Alerts:   queue,
		Cycles:   sched,
		Log:      a.log,
		Timeout:  cfg.HTTP.RequestTimeout,
		OnIngest: func() { _ = sched.Trigger(cyclePipeline) },
	})

	return server.Serve(ctx, cfg.HTTP.Address, router, a.log)
}
