// Package jobclient drives long-running remote jobs through submit, poll and
// fetch, independent of which service runs them.
package jobclient

import (
	"context"
	"time"
)

// Status is the normalized lifecycle of a remote job. Backends map their own
// vocabulary onto these four values.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further polling may happen for the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Handle identifies a submitted job.
type Handle struct {
	ID          string
	SubmittedAt time.Time
}

// PollResult is one normalized status observation.
type PollResult struct {
	Status Status
	// ResultURL is where the artifact can be fetched once completed.
	ResultURL string
	// Reason carries the backend's failure message when Status is failed.
	Reason string
}

// Backend is the per-service adapter. In is the service-specific submission input.
type Backend[In any] interface {
	Name() string
	Submit(ctx context.Context, in In) (Handle, error)
	Poll(ctx context.Context, h Handle) (PollResult, error)
	Fetch(ctx context.Context, h Handle, res PollResult, dest string) error
}

// Discarder is implemented by backends that keep per-job state until Fetch.
// Run calls Discard once it is done with a submitted job, fetched or not.
type Discarder interface {
	Discard(h Handle)
}

type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota
	OutcomeFailed
	OutcomeTimedOut
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of driving one job.
type Outcome struct {
	Kind     OutcomeKind
	Backend  string
	JobID    string
	Path     string
	Reason   string
	Attempts int
	Elapsed  time.Duration
}

// Err converts a non-completed outcome into the matching error type.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeCompleted:
		return nil
	case OutcomeFailed:
		return &JobFailedError{Backend: o.Backend, JobID: o.JobID, Reason: o.Reason}
	default:
		return &JobTimeoutError{Backend: o.Backend, JobID: o.JobID, Attempts: o.Attempts, Waited: o.Elapsed}
	}
}
