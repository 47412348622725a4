package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/Fortemi/fortemi-sub011/internal/archive"
	"github.com/Fortemi/fortemi-sub011/internal/shard"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

var (
	shardArchiveName string
	shardDryRun      bool
)

func init() {
	shardExportCmd.Flags().StringVar(&shardArchiveName, "archive", "", "archive to export (defaults to the configured default archive)")
	shardImportCmd.Flags().StringVar(&shardArchiveName, "archive", "", "archive to import into (defaults to the configured default archive)")
	shardImportCmd.Flags().BoolVar(&shardDryRun, "dry-run", false, "report what would change without writing anything")
	shardCmd.AddCommand(shardExportCmd, shardImportCmd)
}

var shardCmd = &cobra.Command{
	Use:   "shard",
	Short: "Export or import archive shard bundles",
}

var shardExportCmd = &cobra.Command{
	Use:   "export [output-file]",
	Short: "Export an archive to a tar+gzip shard bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runShardExport,
}

var shardImportCmd = &cobra.Command{
	Use:   "import [input-file]",
	Short: "Import a tar+gzip shard bundle into an archive",
	Args:  cobra.ExactArgs(1),
	RunE:  runShardImport,
}

func runShardExport(cmd *cobra.Command, args []string) error {
	outPath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	name := shardArchiveName
	if name == "" {
		name = cfg.Archive.Default
	}
	a, err := archive.New(name)
	if err != nil {
		return fmt.Errorf("invalid archive name: %w", err)
	}
	ctx = archive.WithContext(ctx, a)

	var buf bytes.Buffer
	err = pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		return shard.Export(ctx, shard.NewStorageAdapter(uow), &buf)
	})
	if err != nil {
		return fmt.Errorf("export archive %q: %w", a.Name, err)
	}

	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Printf("exported archive %q (%d bytes) to %s\n", a.Name, buf.Len(), outPath)
	return nil
}

func runShardImport(cmd *cobra.Command, args []string) error {
	inPath := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	name := shardArchiveName
	if name == "" {
		name = cfg.Archive.Default
	}
	a, err := archive.New(name)
	if err != nil {
		return fmt.Errorf("invalid archive name: %w", err)
	}
	ctx = archive.WithContext(ctx, a)

	data, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inPath, err)
	}

	target, err := semver.NewVersion(shard.CurrentVersion)
	if err != nil {
		return fmt.Errorf("parse shard.CurrentVersion: %w", err)
	}
	registry := shard.NewRegistry()

	var result *shard.Result
	err = pool.Run(ctx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		adapter := shard.NewStorageAdapter(uow)
		r, err := shard.Import(ctx, bytes.NewReader(data), registry, target, adapter, shardDryRun)
		result = r
		return err
	})
	if err != nil {
		return fmt.Errorf("import into archive %q: %w", a.Name, err)
	}

	fmt.Printf("archive %q: would insert %d, would update %d\n", a.Name, result.WouldInsert, result.WouldUpdate)
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s: %s\n", w.Kind, w.Detail)
	}
	return nil
}
