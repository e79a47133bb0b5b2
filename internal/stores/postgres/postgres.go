package postgres

import (
	"context"
	"errors"
	"fmt"

	"dexindexer/internal/stores/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

func (p *Pool) Health(ctx context.Context) error {
	return p.Ping(ctx)
}

// Migrate applies the embedded postgres migrations
func (p *Pool) Migrate(ctx context.Context) error {
	return migrations.Run(ctx, migrations.PostgresFS, "postgres", migrations.ExecFunc(func(ctx context.Context, stmt string) error {
		_, err := p.Exec(ctx, stmt)
		return err
	}))
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
