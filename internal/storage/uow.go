package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is the subset of pgx.Tx / storage.Conn repositories depend on, so
// the same repository type works whether it was obtained inside a
// UnitOfWork transaction or directly from a read-only pool checkout.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UnitOfWork scopes a set of repository writes to one transaction that
// commits atomically or rolls back on any error.
type UnitOfWork struct {
	tx pgx.Tx
}

// Run acquires a connection for ctx's archive, begins a transaction, and
// invokes fn with a UnitOfWork wrapping it. fn's repositories are obtained
// via uow.Notes(), uow.Chunks(), etc. The transaction commits if fn returns
// nil and rolls back otherwise (including on panic, which is re-raised
// after rollback).
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) (err error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release(ctx)

	tx, err := conn.raw.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, &UnitOfWork{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RunSerializable is Run with the transaction opened at SERIALIZABLE
// isolation, required for the dedup-on-enqueue and job-claim paths: the
// dedup check and the claim query must both be evaluated under
// serializable isolation so a concurrent worker claiming a pending job
// does not race. A serialization
// failure from fn should be retried by the caller via storage.WithRetry.
func (p *Pool) RunSerializable(ctx context.Context, fn func(ctx context.Context, uow *UnitOfWork) error) (err error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release(ctx)

	tx, err := conn.raw.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin serializable transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, &UnitOfWork{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Notes returns a NoteRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Notes() *NoteRepo { return &NoteRepo{q: u.tx} }

// NoteVersions returns a NoteVersionRepo bound to this unit of work's transaction.
func (u *UnitOfWork) NoteVersions() *NoteVersionRepo { return &NoteVersionRepo{q: u.tx} }

// Chunks returns a ChunkRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Chunks() *ChunkRepo { return &ChunkRepo{q: u.tx} }

// Embeddings returns an EmbeddingRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Embeddings() *EmbeddingRepo { return &EmbeddingRepo{q: u.tx} }

// EmbeddingConfigs returns an EmbeddingConfigRepo bound to this unit of work's transaction.
func (u *UnitOfWork) EmbeddingConfigs() *EmbeddingConfigRepo { return &EmbeddingConfigRepo{q: u.tx} }

// EmbeddingSets returns an EmbeddingSetRepo bound to this unit of work's transaction.
func (u *UnitOfWork) EmbeddingSets() *EmbeddingSetRepo { return &EmbeddingSetRepo{q: u.tx} }

// Jobs returns a JobRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Jobs() *JobRepo { return &JobRepo{q: u.tx} }

// Tags returns a TagRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Tags() *TagRepo { return &TagRepo{q: u.tx} }

// Concepts returns a ConceptRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Concepts() *ConceptRepo { return &ConceptRepo{q: u.tx} }

// Collections returns a CollectionRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Collections() *CollectionRepo { return &CollectionRepo{q: u.tx} }

// Links returns a LinkRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Links() *LinkRepo { return &LinkRepo{q: u.tx} }

// Provenance returns a ProvenanceRepo bound to this unit of work's transaction.
func (u *UnitOfWork) Provenance() *ProvenanceRepo { return &ProvenanceRepo{q: u.tx} }

// Archives returns an ArchiveRepo bound to this unit of work's transaction.
// It always reads/writes public.archive_registry regardless of the
// transaction's search_path (see ArchiveRepo's doc comment).
func (u *UnitOfWork) Archives() *ArchiveRepo { return &ArchiveRepo{q: u.tx} }

// Tx exposes the underlying transaction for callers that need a raw escape
// hatch.
func (u *UnitOfWork) Tx() pgx.Tx { return u.tx }
