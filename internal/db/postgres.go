package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Pools are the two database roles the services connect as. App is subject
// to row-level access control; Admin bypasses it and is used for migrations
// and by system jobs (indexer, worker). Admin may be the same pool as App.
type Pools struct {
	App   *pgxpool.Pool
	Admin *pgxpool.Pool
}

func (p *Pools) Close() {
	if p.Admin != nil && p.Admin != p.App {
		p.Admin.Close()
	}
	if p.App != nil {
		p.App.Close()
	}
}

func OpenPools(ctx context.Context, dsn, adminDSN string, log *zap.Logger) (*Pools, error) {
	app, err := NewPostgresPool(ctx, dsn, 20, log.With(zap.String("pool", "app")))
	if err != nil {
		return nil, fmt.Errorf("app pool: %w", err)
	}
	if adminDSN == "" || adminDSN == dsn {
		return &Pools{App: app, Admin: app}, nil
	}
	admin, err := NewPostgresPool(ctx, adminDSN, 5, log.With(zap.String("pool", "admin")))
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("admin pool: %w", err)
	}
	return &Pools{App: app, Admin: admin}, nil
}

func NewPostgresPool(ctx context.Context, dsn string, maxConns int32, log *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("postgres pool created", zap.Int32("max_conns", cfg.MaxConns))
	return pool, nil
}
