// fortemictl is the operator CLI for the matric-core engine: it provisions
// archives, runs the background job workers, drives ad hoc searches, and
// moves shard bundles in and out, all wired against the same config,
// logging, and storage packages the embedding collaborator uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Fortemi/fortemi-sub011/internal/config"
	"github.com/Fortemi/fortemi-sub011/internal/logging"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
	"github.com/Fortemi/fortemi-sub011/internal/telemetry"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// configFile, when set, layers a TOML file beneath the environment via
	// config.LoadWithFile instead of config.Load's environment-only mode.
	configFile string
)

var rootCmd = &cobra.Command{
	Use:     "fortemictl",
	Short:   "Operate the matric-core engine: archives, workers, search, shards",
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML config file to layer beneath environment variables; unset means environment-only")
	rootCmd.AddCommand(migrateCmd, serveCmd, searchCmd, shardCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("fortemictl\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
		return nil
	},
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, the same
// graceful-shutdown idiom the embedding collaborator's own entry point
// uses.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

// loadConfig loads and validates configuration, failing fast on any
// invariant violation rather than letting a bad value reach a component.
// When --config names a file, it is layered beneath the environment via
// config.LoadWithFile; otherwise configuration is environment-only.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		cfg, err := config.LoadWithFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newTelemetry boots the OTEL tracer/meter providers from cfg.Observability.
// Returns a usable no-op *telemetry.Telemetry when telemetry is disabled,
// so callers can always defer Shutdown unconditionally.
func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	return telemetry.New(ctx, &cfg.Observability)
}

// newLogger builds the structured logger every subcommand shares, wired to
// forward records through tel's OTEL log bridge when telemetry is enabled.
func newLogger(tel *telemetry.Telemetry) (*logging.Logger, error) {
	return logging.NewLogger(logging.NewDefaultConfig(), tel.LoggerProvider())
}

// openPool connects to Postgres using cfg.Storage, failing with a wrapped
// error that names the operation that was attempting to reach the
// database.
func openPool(ctx context.Context, cfg *config.Config) (*storage.Pool, error) {
	dsn := string(cfg.Storage.DatabaseURL)
	if dsn == "" {
		return nil, fmt.Errorf("MATRIC_STORAGE__DATABASE_URL is required")
	}
	pool, err := storage.NewPool(ctx, dsn, cfg.Storage.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect to storage: %w", err)
	}
	return pool, nil
}
