package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/fincoach/internal/catalog"
	"github.com/Veraticus/fincoach/internal/cli"
	"github.com/Veraticus/fincoach/internal/config"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the capability catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List capabilities in fallback priority order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalog(viper.GetString("catalog.path"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), cli.RenderCatalog(cat))
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Validate a catalog file (default: the configured catalog)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := viper.GetString("catalog.path")
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				cat, err := catalog.Default()
				if err != nil {
					return err
				}
				slog.Info(cli.FormatSuccess("Embedded catalog is valid"), "version", cat.Version(), "capabilities", cat.Len())
				return nil
			}

			data, err := os.ReadFile(config.ExpandPath(path))
			if err != nil {
				return fmt.Errorf("failed to read catalog: %w", err)
			}
			cat, err := catalog.Load(data)
			if err != nil {
				return err
			}
			slog.Info(cli.FormatSuccess("Catalog is valid"), "path", path, "version", cat.Version(), "capabilities", cat.Len())
			return nil
		},
	})

	return cmd
}
