package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ai-things/clipcast/internal/utils"
)

// PostgresStore expects the schema from migrations/ to be applied.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run Run) error {
	utils.Debug("db create run", "id", run.ID)
	if run.ID == "" {
		return errors.New("run.ID is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (id, website_url, transcript_path, app_name, clip_index, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`, run.ID, run.WebsiteURL, run.TranscriptPath, run.AppName, run.ClipIndex, run.State)
	return err
}

func (s *PostgresStore) RecordTransition(ctx context.Context, runID, state, detail string) error {
	utils.Debug("db record transition", "id", runID, "state", state)
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO run_transitions (run_id, state, detail, at)
		VALUES ($1, $2, $3, NOW())
	`, runID, state, detail); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE runs
		SET state = $1,
			updated_at = NOW()
		WHERE id = $2
	`, state, runID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) RecordArtifact(ctx context.Context, rec ArtifactRecord) error {
	utils.Debug("db record artifact", "id", rec.RunID, "kind", rec.Kind, "index", rec.SegmentIndex)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO run_artifacts (run_id, kind, segment_index, speaker, path, sha256, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (run_id, kind, segment_index) DO UPDATE
		SET speaker = EXCLUDED.speaker,
			path = EXCLUDED.path,
			sha256 = EXCLUDED.sha256,
			created_at = NOW()
	`, rec.RunID, rec.Kind, rec.SegmentIndex, rec.Speaker, rec.Path, rec.SHA256)
	return err
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, result RunResult, runErr error) error {
	state, msg := finishState(runErr)
	utils.Debug("db finish run", "id", runID, "state", state)
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs
		SET state = $1,
			final_video_path = $2,
			captioned = $3,
			error = $4,
			updated_at = NOW(),
			finished_at = NOW()
		WHERE id = $5
	`, state, result.FinalVideoPath, result.Captioned, msg, runID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

const pgRunColumns = `id, website_url, transcript_path, app_name, clip_index, state, final_video_path, captioned, error, created_at, updated_at, finished_at`

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `SELECT `+pgRunColumns+` FROM runs ORDER BY created_at DESC, id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (RunDetail, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx, `SELECT `+pgRunColumns+` FROM runs WHERE id = $1`, runID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RunDetail{}, ErrRunNotFound
		}
		return RunDetail{}, err
	}
	detail := RunDetail{Run: run}

	trows, err := s.pool.Query(ctx, `
		SELECT run_id, state, detail, at
		FROM run_transitions
		WHERE run_id = $1
		ORDER BY id
	`, runID)
	if err != nil {
		return RunDetail{}, err
	}
	detail.Transitions, err = pgx.CollectRows(trows, func(row pgx.CollectableRow) (Transition, error) {
		var t Transition
		err := row.Scan(&t.RunID, &t.State, &t.Detail, &t.At)
		return t, err
	})
	if err != nil {
		return RunDetail{}, err
	}

	arows, err := s.pool.Query(ctx, `
		SELECT run_id, segment_index, speaker, kind, path, sha256, created_at
		FROM run_artifacts
		WHERE run_id = $1
		ORDER BY kind, segment_index
	`, runID)
	if err != nil {
		return RunDetail{}, err
	}
	detail.Artifacts, err = pgx.CollectRows(arows, func(row pgx.CollectableRow) (ArtifactRecord, error) {
		var a ArtifactRecord
		err := row.Scan(&a.RunID, &a.SegmentIndex, &a.Speaker, &a.Kind, &a.Path, &a.SHA256, &a.CreatedAt)
		return a, err
	})
	if err != nil {
		return RunDetail{}, err
	}
	return detail, nil
}

func scanPgRun(row pgx.Row) (Run, error) {
	var run Run
	var finished *time.Time
	err := row.Scan(
		&run.ID,
		&run.WebsiteURL,
		&run.TranscriptPath,
		&run.AppName,
		&run.ClipIndex,
		&run.State,
		&run.FinalVideoPath,
		&run.Captioned,
		&run.Error,
		&run.CreatedAt,
		&run.UpdatedAt,
		&finished,
	)
	run.FinishedAt = finished
	return run, err
}
