// Package repository provides the PostgreSQL identity store and profile table.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twopelicans/portal/internal/auth"
)

// Repository provides database access methods.
type Repository struct {
	pool   *pgxpool.Pool
	hasher *auth.Hasher
}

// New creates a new Repository with a connection pool.
func New(ctx context.Context, databaseURL string, hasher *auth.Hasher) (*Repository, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewWithPool(pool, hasher), nil
}

// NewWithPool wraps an existing pool. A nil hasher uses default argon2 params.
func NewWithPool(pool *pgxpool.Pool, hasher *auth.Hasher) *Repository {
	if hasher == nil {
		hasher = auth.NewHasher(auth.Params{})
	}
	return &Repository{pool: pool, hasher: hasher}
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool.
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool.
// Use sparingly - prefer adding methods to Repository.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}
