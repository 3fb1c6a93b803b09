package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/taskradar/internal/model"
)

// app carries what every subcommand needs after config is loaded.
type app struct {
	configPath string
	cfg        *model.AppConfig
	log        *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "taskradar",
		Short:         "Notification-to-task pipeline with proximity alerts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = newLogger(cfg)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", model.DefaultConfigPath(),
		"Path to the YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newTasksCmd(a),
		newIngestCmd(a),
		newCredentialsCmd(),
	)
	return root
}

// newLogger builds the process logger from log_level and log_format.
func newLogger(cfg *model.AppConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
