package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fincoach/internal/cli"
)

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect recorded request events",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Summarize routing, escalation and safety outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, _ := cmd.Flags().GetDuration("since")

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			since := time.Now().Add(-window)
			summary, err := a.store.EventStats(cmd.Context(), since)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), cli.RenderEventStats(summary, since))
			return err
		},
	}
	stats.Flags().Duration("since", 7*24*time.Hour, "How far back to look")
	cmd.AddCommand(stats)

	return cmd
}
