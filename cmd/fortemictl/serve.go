package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Masterminds/semver/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Fortemi/fortemi-sub011/internal/archive"
	"github.com/Fortemi/fortemi-sub011/internal/config"
	"github.com/Fortemi/fortemi-sub011/internal/jobs"
	"github.com/Fortemi/fortemi-sub011/internal/logging"
	"github.com/Fortemi/fortemi-sub011/internal/shard"
	"github.com/Fortemi/fortemi-sub011/pkg/blob"
	"github.com/Fortemi/fortemi-sub011/pkg/cipher"
	"github.com/Fortemi/fortemi-sub011/pkg/embeddingapi"
	"go.uber.org/zap"
)

var serveBlobDir string

func init() {
	serveCmd.Flags().StringVar(&serveBlobDir, "blob-dir", "./data/blobs", "local directory backing shard export/import blob storage")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background job workers until interrupted",
	Long: `serve starts cfg.Jobs.Workers worker goroutines draining the
persistent job queue (embed, revise, concept-tag, link-discover,
attachment-extract, exif-extract, reembed-all, shard-export, shard-import)
and blocks until SIGINT/SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	logger, err := newLogger(tel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	defaultArchive, err := archive.New(cfg.Archive.Default)
	if err != nil {
		return fmt.Errorf("invalid default archive: %w", err)
	}
	ctx = archive.WithContext(ctx, defaultArchive)

	deps, err := buildJobDeps(cfg, logger.Underlying())
	if err != nil {
		return fmt.Errorf("build job dependencies: %w", err)
	}

	q := jobs.NewQueue(pool, logger)
	jobs.RegisterDefaults(q, deps)

	if addr := cfg.Observability.PrometheusListenAddr; addr != "" {
		stopMetrics := startMetricsServer(ctx, logger, addr)
		defer stopMetrics(context.Background())
	}

	if configFile != "" {
		if err := watchConfigFile(ctx, logger, configFile); err != nil {
			logger.Warn(ctx, "config file watch unavailable", zap.Error(err), zap.String("path", configFile))
		}
	}

	logger.Info(ctx, "starting workers",
		zap.Int("workers", cfg.Jobs.Workers),
		zap.String("archive", defaultArchive.Name))

	q.Run(ctx, cfg.Jobs.Workers)
	<-ctx.Done()
	logger.Info(ctx, "workers stopped")
	return nil
}

// startMetricsServer serves the Prometheus handler (job-queue and
// embedding-backend instrument vectors) on addr and returns a shutdown
// func the caller should defer. Listener failures are logged, not fatal:
// metrics export is an observability aid, never a condition for serving.
func startMetricsServer(ctx context.Context, logger *logging.Logger, addr string) func(context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn(ctx, "metrics server stopped", zap.Error(err), zap.String("addr", addr))
		}
	}()
	logger.Info(ctx, "serving prometheus metrics", zap.String("addr", addr))

	return srv.Shutdown
}

// watchConfigFile logs every detected edit to path. jobs.Workers and the
// other knobs already captured by q/deps are not hot-swapped mid-run (that
// would require tearing down and rebuilding the worker pool and backend
// clients); operators wanting a changed value applied restart the process.
// The watch still gives early warning that a config edit landed before a
// restart picks it up.
func watchConfigFile(ctx context.Context, logger *logging.Logger, path string) error {
	return config.WatchFile(ctx, path,
		func(cfg *config.Config) {
			logger.Info(ctx, "config file changed; restart to apply",
				zap.String("path", path),
				zap.Int("jobs.workers", cfg.Jobs.Workers))
		},
		func(err error) {
			logger.Warn(ctx, "config file reload failed", zap.Error(err), zap.String("path", path))
		},
	)
}

// buildJobDeps wires the embedding/generation backends, blob store, cipher,
// and shard registry every worker needs, selecting local vs. cloud per
// cfg.Inference, the same backend-selection switch the HTTP collaborator
// uses when constructing its own embedding service.
func buildJobDeps(cfg *config.Config, zlog *zap.Logger) (jobs.Deps, error) {
	backend, err := newEmbeddingBackend(cfg, zlog)
	if err != nil {
		return jobs.Deps{}, err
	}
	generation, err := newGenerationBackend(cfg)
	if err != nil {
		return jobs.Deps{}, err
	}

	store, err := blob.NewLocalStore(serveBlobDir)
	if err != nil {
		return jobs.Deps{}, fmt.Errorf("init blob store: %w", err)
	}

	target, err := semver.NewVersion(shard.CurrentVersion)
	if err != nil {
		return jobs.Deps{}, fmt.Errorf("parse shard.CurrentVersion: %w", err)
	}

	return jobs.Deps{
		Backend:       backend,
		Generation:    generation,
		Blob:          store,
		Cipher:        cipher.NewDefault(cipher.KDFParams{MemoryKiB: uint32(cfg.KDF.MemoryKiB), Iterations: uint32(cfg.KDF.Iterations), Parallelism: uint8(cfg.KDF.Parallelism)}),
		ShardRegistry: shard.NewRegistry(),
		ShardTarget:   target,
	}, nil
}

func newEmbeddingBackend(cfg *config.Config, zlog *zap.Logger) (embeddingapi.EmbeddingBackend, error) {
	switch cfg.Inference.EmbeddingBackend {
	case "cloud":
		return embeddingapi.NewCloudBackend(embeddingapi.CloudConfig{
			BaseURL:    cfg.Inference.BaseURL,
			APIKey:     string(cfg.Inference.APIKey),
			Dimensions: 384,
		}, zlog)
	default:
		return embeddingapi.NewLocalBackend(embeddingapi.LocalConfig{
			BaseURL:    cfg.Inference.BaseURL,
			Dimensions: 384,
		}, zlog)
	}
}

func newGenerationBackend(cfg *config.Config) (embeddingapi.GenerationBackend, error) {
	if cfg.Inference.GenerationBackend != "cloud" {
		return nil, nil
	}
	return embeddingapi.NewCloudGenerationBackend(embeddingapi.CloudConfig{
		BaseURL:    cfg.Inference.BaseURL,
		APIKey:     string(cfg.Inference.APIKey),
		Dimensions: 384,
	})
}
