package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Fortemi/fortemi-sub011/internal/archive"
	"github.com/Fortemi/fortemi-sub011/internal/embedding"
	"github.com/Fortemi/fortemi-sub011/internal/search"
)

var (
	searchArchiveName string
	searchMode        string
	searchLimit       int
)

func init() {
	searchCmd.Flags().StringVar(&searchArchiveName, "archive", "", "archive to search (defaults to the configured default archive)")
	searchCmd.Flags().StringVar(&searchMode, "mode", string(search.ModeHybrid), "search mode: fts, semantic, or hybrid")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results to return")
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a hybrid/FTS/semantic search against an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

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

	archiveName := searchArchiveName
	if archiveName == "" {
		archiveName = cfg.Archive.Default
	}
	a, err := archive.New(archiveName)
	if err != nil {
		return fmt.Errorf("invalid archive name: %w", err)
	}
	ctx = archive.WithContext(ctx, a)

	reader, err := pool.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("acquire reader: %w", err)
	}
	defer reader.Close(ctx)

	backend, err := newEmbeddingBackend(cfg, logger.Underlying())
	if err != nil {
		return fmt.Errorf("init embedding backend: %w", err)
	}

	engine := &search.Engine{
		Chunks:                     reader.Chunks(),
		Tags:                       reader.Tags(),
		EmbeddingSets:              reader.EmbeddingSets(),
		EmbeddingConfigs:           reader.EmbeddingConfigs(),
		Retriever:                  embedding.NewRetriever(backend, reader.Embeddings()),
		MinSemanticSimilarityNoFTS: cfg.FTS.MinSemanticSimilarityNoFTS,
	}

	results, err := engine.Search(ctx, search.Request{
		Query: query,
		Mode:  search.Mode(searchMode),
		Dedup: search.DedupParent,
		Limit: searchLimit,
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	for i, r := range results {
		fmt.Printf("%2d. %s\n", i+1, r.Snippet)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}
