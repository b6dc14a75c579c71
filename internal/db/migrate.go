package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ai-things/clipcast/internal/utils"
)

// Migrate applies pending *.sql files from dir in filename order, each in its
// own transaction. With dryRun it only reports what is pending. It returns the
// names of the pending (or applied) migrations.
func Migrate(ctx context.Context, connString, dir string, dryRun bool) ([]string, error) {
	files, err := ListSQLFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .sql files found in %s", dir)
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	if err := ensureMigrationsTable(ctx, pool); err != nil {
		return nil, err
	}

	pending := []string{}
	for _, path := range files {
		applied, err := isApplied(ctx, pool, filepath.Base(path))
		if err != nil {
			return nil, err
		}
		if !applied {
			pending = append(pending, path)
		}
	}

	names := make([]string, 0, len(pending))
	for _, path := range pending {
		names = append(names, filepath.Base(path))
	}
	if dryRun {
		return names, nil
	}

	for _, path := range pending {
		name := filepath.Base(path)
		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		sqlText := strings.TrimSpace(string(sqlBytes))
		if sqlText == "" {
			continue
		}
		start := time.Now()
		utils.Info("migrate apply", "migration", name)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}
		_, execErr := tx.Exec(ctx, sqlText)
		if execErr == nil {
			_, execErr = tx.Exec(ctx, `INSERT INTO schema_migrations (filename, applied_at) VALUES ($1, NOW())`, name)
		}
		if execErr != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("migration %s failed: %w", name, execErr)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		utils.Info("migrate applied", "migration", name, "dur", time.Since(start).Truncate(time.Millisecond).String())
	}
	return names, nil
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

func isApplied(ctx context.Context, pool *pgxpool.Pool, filename string) (bool, error) {
	var out string
	err := pool.QueryRow(ctx, `SELECT filename FROM schema_migrations WHERE filename = $1`, filename).Scan(&out)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return out != "", nil
}

// ListSQLFiles returns the *.sql files of dir, sorted.
func ListSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}
