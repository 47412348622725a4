package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Fortemi/fortemi-sub011/internal/archive"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

var migrateArchiveName string

func init() {
	migrateCmd.Flags().StringVar(&migrateArchiveName, "archive", archive.DefaultName, "archive to provision or migrate")
	migrateCmd.AddCommand(migrateListCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Provision an archive's schema and replay pending migrations",
	Long: `migrate creates the named archive's Postgres schema if it doesn't
already exist, registers it in the archive registry, and replays the full
numbered migration sequence against it. Safe to run repeatedly: every step
is idempotent.`,
	RunE: runMigrate,
}

var migrateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every provisioned archive",
	RunE:  runMigrateList,
}

func runMigrate(cmd *cobra.Command, args []string) error {
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

	a, err := archive.New(migrateArchiveName)
	if err != nil {
		return fmt.Errorf("invalid archive name: %w", err)
	}

	if err := storage.ProvisionArchive(ctx, pool, a.SchemaName()); err != nil {
		return fmt.Errorf("provision archive %q: %w", a.Name, err)
	}

	registerCtx := archive.WithContext(ctx, a)
	if err := pool.Run(registerCtx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		return uow.Archives().Register(ctx, a.Name)
	}); err != nil {
		return fmt.Errorf("register archive %q: %w", a.Name, err)
	}

	fmt.Printf("archive %q provisioned at schema %q\n", a.Name, a.SchemaName())
	return nil
}

func runMigrateList(cmd *cobra.Command, args []string) error {
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

	defaultArchive, err := archive.New(cfg.Archive.Default)
	if err != nil {
		return fmt.Errorf("invalid default archive: %w", err)
	}
	listCtx := archive.WithContext(ctx, defaultArchive)

	var names []string
	err = pool.Run(listCtx, func(ctx context.Context, uow *storage.UnitOfWork) error {
		var err error
		names, err = uow.Archives().List(ctx)
		return err
	})
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
