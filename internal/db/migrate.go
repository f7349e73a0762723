package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// migrationLockID serializes concurrent starts of api, worker and indexer.
const migrationLockID = 0x617263696e76

// RunMigrations applies every *.up.sql in dir that is not yet recorded in
// schema_migrations, in file name order, each in its own transaction.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, dir string, log *zap.Logger) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`); err != nil {
		return err
	}

	files, err := pendingCandidates(dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		version := strings.TrimSuffix(f, ".up.sql")
		sql, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return err
		}

		applied, err := applyOne(ctx, pool, version, string(sql))
		if err != nil {
			return fmt.Errorf("migration %s: %w", version, err)
		}
		if applied {
			log.Info("migration applied", zap.String("version", version))
		}
	}
	return nil
}

func pendingCandidates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, version, sql string) (bool, error) {
	applied := false
	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, migrationLockID); err != nil {
			return err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return nil
		}
		if _, err := tx.Exec(ctx, sql); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
