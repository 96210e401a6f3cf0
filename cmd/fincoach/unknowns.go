package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/fincoach/internal/cli"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/config"
	"github.com/Veraticus/fincoach/internal/fallback"
	"github.com/Veraticus/fincoach/internal/sheets"
)

func unknownsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unknowns",
		Short: "Review questions fincoach could not answer",
	}

	cmd.AddCommand(unknownsListCmd())
	cmd.AddCommand(unknownsExportCmd())
	cmd.AddCommand(unknownsPruneCmd())
	cmd.AddCommand(unknownsResolveCmd())
	cmd.AddCommand(unknownsFeedbackCmd())

	return cmd
}

func unknownsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unanswered questions, most frequent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			records := a.unknowns.List()
			if !all {
				records = openOnly(records)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), cli.RenderUnknowns(records))
			return err
		},
	}
	cmd.Flags().Bool("all", false, "Include resolved questions")
	return cmd
}

// exportUnknowns hands records to exporter, dropping resolved ones unless all
// is set, and returns how many were exported.
func exportUnknowns(ctx context.Context, exporter sheets.Exporter, records []fallback.UnknownRecord, all bool, now time.Time) (int, error) {
	if !all {
		records = openOnly(records)
	}
	if err := exporter.ExportUnknowns(ctx, records, now); err != nil {
		return 0, fmt.Errorf("failed to export unanswered questions: %w", err)
	}
	return len(records), nil
}

func unknownsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export unanswered questions to Google Sheets",
		Long: `Write the unanswered-question log to a Google Sheet for offline review.

Credentials come from sheets.* in the config file or GOOGLE_SHEETS_* environment
variables: a service account file, an OAuth client id/secret with a refresh
token or token file, or an interactive browser login.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			all, _ := cmd.Flags().GetBool("all")

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				return err
			}
			writer, err := sheets.NewWriter(ctx, *sheetsCfg, a.logger)
			if err != nil {
				return fmt.Errorf("failed to connect to Google Sheets: %w", err)
			}

			n, err := exportUnknowns(ctx, writer, a.unknowns.List(), all, time.Now())
			if err != nil {
				return err
			}
			slog.Info(cli.FormatSuccess(fmt.Sprintf("Exported %d questions", n)))
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "Include resolved questions")
	return cmd
}

func unknownsPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Drop questions older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			n := a.unknowns.Prune(cmd.Context())
			slog.Info(cli.FormatSuccess(fmt.Sprintf("Pruned %d questions", n)),
				"retention", a.settings.Unknown.Retention(), "remaining", a.unknowns.Len())
			return nil
		},
	}
}

func unknownsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve ID",
		Short: "Mark a question as handled",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := matchUnknownID(a.unknowns.List(), args[0])
			if err != nil {
				return err
			}
			if err := a.unknowns.MarkResolved(cmd.Context(), id); err != nil {
				return err
			}
			slog.Info(cli.FormatSuccess("Marked resolved"), "id", id)
			return nil
		},
	}
}

func unknownsFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback ID TEXT...",
		Short: "Attach a note to a question",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			id, err := matchUnknownID(a.unknowns.List(), args[0])
			if err != nil {
				return err
			}
			if err := a.unknowns.AttachFeedback(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
				return err
			}
			slog.Info(cli.FormatSuccess("Feedback saved"), "id", id)
			return nil
		},
	}
}

func openOnly(records []fallback.UnknownRecord) []fallback.UnknownRecord {
	open := records[:0:0]
	for _, r := range records {
		if !r.Resolved {
			open = append(open, r)
		}
	}
	return open
}

// matchUnknownID accepts a full id or a unique prefix of one.
func matchUnknownID(records []fallback.UnknownRecord, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", common.NewUserError("give a question id from 'fincoach unknowns list'", common.ErrNotFound)
	}
	var matches []string
	for _, r := range records {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unknown query %s: %w", prefix, common.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", common.NewUserError(fmt.Sprintf("id %q matches %d questions; use more characters", prefix, len(matches)), common.ErrInvalidConfig)
	}
}
