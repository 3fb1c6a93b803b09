package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/taskradar/internal/model"
	"github.com/nhle/taskradar/internal/store"
	"github.com/nhle/taskradar/internal/theme"
)

func newTasksCmd(a *app) *cobra.Command {
	var (
		statuses string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.TaskFilter{SortBy: "updated_at", SortDesc: true, Limit: limit}
			if statuses != "" {
				for _, s := range strings.Split(statuses, ",") {
					st := model.Status(strings.TrimSpace(s))
					if !st.Valid() {
						return fmt.Errorf("unknown status %q", s)
					}
					filter.Statuses = append(filter.Statuses, st)
				}
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			tasks, err := st.GetTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.TaskTable(tasks))
			return nil
		},
	}

	cmd.Flags().StringVar(&statuses, "status", "", "Comma-separated statuses (pending,in_progress,completed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of tasks to show")
	return cmd
}
