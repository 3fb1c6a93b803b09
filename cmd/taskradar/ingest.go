package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/taskradar/internal/model"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		n       model.Notification
		process bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store a notification for the pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			stored, err := st.CreateNotification(ctx, n)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored notification %s\n", stored.ID)

			if !process {
				return nil
			}

			m, _ := a.aiModel()
			summary, err := a.processor(st, m).RunCycle(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d, failed %d\n", summary.Processed, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&n.SourceApp, "app", "", "Source app identifier (required)")
	cmd.Flags().StringVar(&n.Title, "title", "", "Notification title")
	cmd.Flags().StringVar(&n.Content, "content", "", "Notification body")
	cmd.Flags().BoolVar(&process, "process", false, "Run one pipeline cycle after storing")
	_ = cmd.MarkFlagRequired("app")
	return cmd
}
