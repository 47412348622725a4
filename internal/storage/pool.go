package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Fortemi/fortemi-sub011/internal/archive"
)

// Pool wraps a pgxpool.Pool and enforces archive-scoped checkout: every
// connection handed to a caller has `search_path` set to the requesting
// archive's schema before use, and reset on release, so archive context
// never leaks across requests sharing the pool — grounded on the
// connect/ensureSchema shape of the fbrzx-airplane-chat postgres
// vectorstore, generalized from a single fixed schema to per-archive ones.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to Postgres and returns a Pool. maxConns <= 0 uses pgx's
// own default.
func NewPool(ctx context.Context, dsn string, maxConns int) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &Pool{pool: pool}, nil
}

// Close releases the underlying database resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// Conn is a checked-out connection scoped to one archive's schema. Release
// must be called to reset search_path and return the connection to the pool.
type Conn struct {
	raw *pgxpool.Conn
}

// Release resets search_path and returns the connection to the pool.
func (c *Conn) Release(ctx context.Context) {
	_, _ = c.raw.Exec(ctx, "SET search_path TO public")
	c.raw.Release()
}

// Query, Exec, and QueryRow delegate to the underlying pgx connection,
// already scoped to the correct archive schema.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.raw.Query(ctx, sql, args...)
}

func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.raw.QueryRow(ctx, sql, args...)
}

func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.raw.Exec(ctx, sql, args...)
}

// Acquire checks out a connection from the pool and sets search_path to the
// archive carried on ctx. The archive must already be present on ctx
// (internal/archive.FromContext); Acquire panics via MustFromContext if not,
// since acquiring a connection with no archive scope is always a bug.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	a := archive.MustFromContext(ctx)
	if err := archive.Validate(a.Name); err != nil {
		return nil, fmt.Errorf("acquire: %w", err)
	}

	raw, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	// search_path is set with the schema name quoted by
	// pgx.Identifier.Sanitize; a.Name is already validated against the
	// archive identifier pattern, so this is not susceptible to injection,
	// and the quoting guards against a future relaxation of that pattern.
	schema := pgx.Identifier{a.SchemaName()}.Sanitize()
	if _, err := raw.Exec(ctx, fmt.Sprintf("SET search_path TO %s, public", schema)); err != nil {
		raw.Release()
		return nil, fmt.Errorf("set search_path: %w", err)
	}

	return &Conn{raw: raw}, nil
}
