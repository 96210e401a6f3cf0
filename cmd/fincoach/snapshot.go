package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/fincoach/internal/cli"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Show the merged financial snapshot",
		Long: `Load every configured source, merge them, and summarize what data is available for answering questions.

Sources are the snapshot JSON file, OFX/QFX statements, Plaid and SimpleFIN.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dump, _ := cmd.Flags().GetBool("json")

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.loadSnapshot(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dump {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			_, err = fmt.Fprintln(out, cli.RenderBox("Financial snapshot", strings.TrimRight(cli.RenderSnapshot(snap), "\n")))
			return err
		},
	}
	cmd.Flags().Bool("json", false, "Print the merged snapshot as JSON")
	return cmd
}
