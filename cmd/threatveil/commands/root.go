// Package commands implements the threatveil CLI surface: a scan
// runner, a continuous-monitoring scheduler, and a JWT issuer for the
// internal rescan endpoint (spec.md §6 CLI surface), mirroring the
// teacher's cobra + pflag + viper root command wiring.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/threatveil/core/pkg/config"
	"github.com/threatveil/core/pkg/telemetry"
	"github.com/threatveil/core/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "threatveil",
	Short:   "External attack-surface scanner and security posture engine",
	Version: version.Current,
}

func Execute() {
	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx, version.AppName, version.Current, "")
	if err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("init telemetry: %w", err))
		os.Exit(1)
	}
	defer shutdown(ctx)

	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("database-url", "", "Postgres DSN (else in-memory store)")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig binds cmd's own flags through viper the same way
// pkg/config.Load does for the excluded HTTP server, so a CLI flag can
// override an environment variable without duplicating the binding
// logic.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	// viper binds the flag under its own name ("database-url"), not the
	// "database_url" key Load reads, so apply it here.
	if f := cmd.Flags().Lookup("database-url"); f != nil && f.Changed {
		cfg.DatabaseURL = f.Value.String()
	}
	return cfg, nil
}
