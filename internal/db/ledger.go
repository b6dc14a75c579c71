// Package db records pipeline runs, their state transitions and the artifacts
// they produce.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Run is one pipeline execution.
type Run struct {
	ID             string
	WebsiteURL     string
	TranscriptPath string
	AppName        string
	ClipIndex      int
	State          string
	FinalVideoPath string
	Captioned      bool
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FinishedAt     *time.Time
}

type Transition struct {
	RunID  string
	State  string
	Detail string
	At     time.Time
}

type ArtifactRecord struct {
	RunID        string
	SegmentIndex int
	Speaker      string
	Kind         string
	Path         string
	SHA256       string
	CreatedAt    time.Time
}

// RunResult is what a finished run delivered.
type RunResult struct {
	FinalVideoPath string
	Captioned      bool
}

// RunDetail is a run with its full history.
type RunDetail struct {
	Run         Run
	Transitions []Transition
	Artifacts   []ArtifactRecord
}

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Terminal run states as written by FinishRun.
const (
	StateDone   = "done"
	StateFailed = "failed"
)

type Ledger interface {
	CreateRun(ctx context.Context, run Run) error
	RecordTransition(ctx context.Context, runID, state, detail string) error
	RecordArtifact(ctx context.Context, rec ArtifactRecord) error
	FinishRun(ctx context.Context, runID string, result RunResult, runErr error) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, runID string) (RunDetail, error)
	Close() error
}

// OpenLedger opens the ledger for driver: "sqlite" (dsn is a file path),
// "postgres" (dsn is a connection string) or "none".
func OpenLedger(ctx context.Context, driver, dsn string) (Ledger, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, dsn)
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) CreateRun(context.Context, Run) error { return nil }
func (Nop) RecordTransition(context.Context, string, string, string) error { return nil }
func (Nop) RecordArtifact(context.Context, ArtifactRecord) error { return nil }
func (Nop) FinishRun(context.Context, string, RunResult, error) error { return nil }
func (Nop) ListRuns(context.Context, int) ([]Run, error) { return nil, nil }
func (Nop) GetRun(context.Context, string) (RunDetail, error) { return RunDetail{}, ErrRunNotFound }
func (Nop) Close() error { return nil }

func finishState(runErr error) (string, string) {
	if runErr != nil {
		return StateFailed, runErr.Error()
	}
	return StateDone, ""
}
