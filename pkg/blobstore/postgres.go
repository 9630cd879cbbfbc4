package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/s2"
	"github.com/nats-io/nuid"
)

const pgLogPrefix = "blobstore:postgres"

// Postgres is a Store backed by a Postgres table. Consume deletes the row in
// the same statement that reads it, so exactly one consumer ever sees the
// bytes even across processes. Payloads are s2-compressed at rest.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to databaseURL and verifies connectivity.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", pgLogPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", pgLogPrefix, err)
	}
	config.MaxConns = 20
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", pgLogPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", pgLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Database connection established", pgLogPrefix))
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the blobs table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS blobs (
			handle     TEXT PRIMARY KEY,
			data       BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("%s - failed to ensure schema: %w", pgLogPrefix, err)
	}
	return nil
}

// Create stores compressed bytes under a fresh handle.
func (p *Postgres) Create(ctx context.Context, data []byte) (Handle, error) {
	h := Handle("blob." + nuid.Next())
	packed := s2.Encode(nil, data)
	if _, err := p.pool.Exec(ctx, `INSERT INTO blobs (handle, data) VALUES ($1, $2)`, string(h), packed); err != nil {
		return "", fmt.Errorf("%s - failed to create blob: %w", pgLogPrefix, err)
	}
	return h, nil
}

// Consume deletes the row and returns its decompressed bytes.
func (p *Postgres) Consume(ctx context.Context, h Handle) ([]byte, error) {
	var packed []byte
	err := p.pool.QueryRow(ctx, `DELETE FROM blobs WHERE handle = $1 RETURNING data`, string(h)).Scan(&packed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConsumed
	}
	if err != nil {
		return nil, fmt.Errorf("%s - failed to consume blob: %w", pgLogPrefix, err)
	}
	data, err := s2.Decode(nil, packed)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to decompress blob: %w", pgLogPrefix, err)
	}
	return data, nil
}

// Ping reports database reachability for health checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
