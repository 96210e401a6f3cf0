package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/fincoach/internal/cli"
	"github.com/Veraticus/fincoach/internal/common"
	"github.com/Veraticus/fincoach/internal/config"
	"github.com/Veraticus/fincoach/internal/telemetry"
)

var (
	cfgFile           string
	version           = "dev"
	shutdownTelemetry telemetry.Shutdown
	rootCmd = &cobra.Command{
		Use:   "fincoach",
		Short: "💬 Personal finance assistant",
		Long: `fincoach answers questions about your budgets, spending, goals and debts.

Each question is resolved into slots, routed to a capability, checked against
the data you have, answered, and validated before you see it. Questions it
cannot answer are collected for review.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/fincoach/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("snapshot", "", "JSON snapshot file (overrides snapshot.path)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	rootCmd.PersistentFlags().Bool("trace", false, "write pipeline spans to stderr")
	_ = viper.BindPFlag("snapshot.path", rootCmd.PersistentFlags().Lookup("snapshot"))
	_ = viper.BindPFlag("telemetry.enabled", rootCmd.PersistentFlags().Lookup("trace"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(evalCmd())
	rootCmd.AddCommand(unknownsCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if shutdownTelemetry != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if ferr := shutdownTelemetry(flushCtx); ferr != nil {
			slog.Warn("failed to flush traces", "error", ferr)
		}
		cancel()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		viper.AddConfigPath(filepath.Join(home, ".config", "fincoach"))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// FINCOACH_SNAPSHOT_PATH sets snapshot.path, and so on.
	viper.SetEnvPrefix("FINCOACH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var notFound viper.ConfigFileNotFoundError
	if err := viper.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return fmt.Errorf("failed to read config: %w", err)
	}

	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if err := common.SetupLogger(level, viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	shutdown, err := telemetry.Setup("fincoach", version, viper.GetBool("telemetry.enabled"), os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	shutdownTelemetry = shutdown

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fincoach %s\n", version)
		},
	}
}
