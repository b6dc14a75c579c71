package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"ai-things/clipcast/internal/utils"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	utils.Debug("sqlite ledger open", "path", path)
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		website_url TEXT NOT NULL DEFAULT '',
		transcript_path TEXT NOT NULL DEFAULT '',
		app_name TEXT NOT NULL DEFAULT '',
		clip_index INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		final_video_path TEXT NOT NULL DEFAULT '',
		captioned INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		finished_at TEXT
	);
	CREATE TABLE IF NOT EXISTS run_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		state TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS run_artifacts (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		segment_index INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		path TEXT NOT NULL,
		sha256 TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		PRIMARY KEY (run_id, kind, segment_index)
	);
	CREATE INDEX IF NOT EXISTS run_transitions_run_id ON run_transitions(run_id, id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run.ID is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	ts := formatTime(run.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, website_url, transcript_path, app_name, clip_index, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WebsiteURL, run.TranscriptPath, run.AppName, run.ClipIndex, run.State, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordTransition(ctx context.Context, runID, state, detail string) error {
	now := formatTime(time.Now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO run_transitions (run_id, state, detail, at) VALUES (?, ?, ?, ?)`,
		runID, state, detail, now,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert transition: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE runs SET state = ?, updated_at = ? WHERE id = ?`, state, now, runID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("update run state: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecordArtifact(ctx context.Context, rec ArtifactRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_artifacts (run_id, kind, segment_index, speaker, path, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, kind, segment_index) DO UPDATE SET
			speaker = excluded.speaker, path = excluded.path, sha256 = excluded.sha256, created_at = excluded.created_at`,
		rec.RunID, rec.Kind, rec.SegmentIndex, rec.Speaker, rec.Path, rec.SHA256, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, result RunResult, runErr error) error {
	state, msg := finishState(runErr)
	now := formatTime(time.Now())
	captioned := 0
	if result.Captioned {
		captioned = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, final_video_path = ?, captioned = ?, error = ?, updated_at = ?, finished_at = ?
		 WHERE id = ?`,
		state, result.FinalVideoPath, captioned, msg, now, now, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const sqliteRunColumns = `id, website_url, transcript_path, app_name, clip_index, state, final_video_path, captioned, error, created_at, updated_at, finished_at`

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (RunDetail, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRunColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanSQLiteRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunDetail{}, ErrRunNotFound
		}
		return RunDetail{}, err
	}
	detail := RunDetail{Run: run}

	trows, err := s.db.QueryContext(ctx, `SELECT run_id, state, detail, at FROM run_transitions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return RunDetail{}, fmt.Errorf("list transitions: %w", err)
	}
	defer trows.Close()
	for trows.Next() {
		var t Transition
		var at string
		if err := trows.Scan(&t.RunID, &t.State, &t.Detail, &at); err != nil {
			return RunDetail{}, fmt.Errorf("scan transition: %w", err)
		}
		t.At = parseTime(at)
		detail.Transitions = append(detail.Transitions, t)
	}
	if err := trows.Err(); err != nil {
		return RunDetail{}, err
	}

	arows, err := s.db.QueryContext(ctx,
		`SELECT run_id, segment_index, speaker, kind, path, sha256, created_at FROM run_artifacts
		 WHERE run_id = ? ORDER BY kind, segment_index`, runID)
	if err != nil {
		return RunDetail{}, fmt.Errorf("list artifacts: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a ArtifactRecord
		var created string
		if err := arows.Scan(&a.RunID, &a.SegmentIndex, &a.Speaker, &a.Kind, &a.Path, &a.SHA256, &created); err != nil {
			return RunDetail{}, fmt.Errorf("scan artifact: %w", err)
		}
		a.CreatedAt = parseTime(created)
		detail.Artifacts = append(detail.Artifacts, a)
	}
	return detail, arows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (Run, error) {
	var run Run
	var captioned int
	var created, updated string
	var finished sql.NullString
	if err := row.Scan(
		&run.ID,
		&run.WebsiteURL,
		&run.TranscriptPath,
		&run.AppName,
		&run.ClipIndex,
		&run.State,
		&run.FinalVideoPath,
		&captioned,
		&run.Error,
		&created,
		&updated,
		&finished,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Captioned = captioned != 0
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	if finished.Valid && finished.String != "" {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	return run, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
