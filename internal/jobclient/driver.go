package jobclient

import (
	"context"
	"fmt"
	"time"

	"ai-things/clipcast/internal/utils"
)

// Driver holds the polling policy for one kind of job.
type Driver struct {
	Interval    time.Duration
	MaxAttempts int
}

func NewDriver(interval time.Duration, maxAttempts int) Driver {
	if interval <= 0 {
		interval = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return Driver{Interval: interval, MaxAttempts: maxAttempts}
}

// Run submits in, polls until a terminal status or the attempt budget is spent,
// and fetches the artifact into dest exactly once on completion.
//
// The returned error is non-nil only for submission, download and context
// failures; failed and timed-out jobs come back as an Outcome.
func Run[In any](ctx context.Context, d Driver, b Backend[In], in In, dest string) (Outcome, error) {
	name := b.Name()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	handle, err := b.Submit(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, &SubmissionError{Backend: name, Err: err}
	}
	if handle.SubmittedAt.IsZero() {
		handle.SubmittedAt = start
	}
	if disc, ok := b.(Discarder); ok {
		defer disc.Discard(handle)
	}
	utils.Debug("job submitted", "backend", name, "job", handle.ID)

	out := Outcome{Backend: name, JobID: handle.ID}
	for attempt := 1; attempt <= d.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("%s job %s: %w", name, handle.ID, err)
		}
		out.Attempts = attempt

		res, err := b.Poll(ctx, handle)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return out, fmt.Errorf("%s job %s: %w", name, handle.ID, ctx.Err())
			}
			terr := &TransientNetworkError{Backend: name, JobID: handle.ID, Err: err}
			utils.Warn("job poll failed, retrying", "backend", name, "job", handle.ID, "attempt", attempt, "err", terr.Err)
		case res.Status == StatusCompleted:
			utils.Debug("job completed", "backend", name, "job", handle.ID, "attempt", attempt)
			if err := b.Fetch(ctx, handle, res, dest); err != nil {
				return out, &DownloadError{Backend: name, JobID: handle.ID, Err: err}
			}
			out.Kind = OutcomeCompleted
			out.Path = dest
			out.Elapsed = time.Since(start)
			return out, nil
		case res.Status == StatusFailed:
			out.Kind = OutcomeFailed
			out.Reason = res.Reason
			out.Elapsed = time.Since(start)
			return out, nil
		default:
			utils.Debug("job poll", "backend", name, "job", handle.ID, "status", res.Status, "attempt", attempt, "max", d.MaxAttempts)
		}

		if attempt == d.MaxAttempts {
			break
		}
		if err := sleepContext(ctx, d.Interval); err != nil {
			return out, fmt.Errorf("%s job %s: %w", name, handle.ID, err)
		}
	}

	out.Kind = OutcomeTimedOut
	out.Elapsed = time.Since(start)
	return out, nil
}

// Await is Run folded into a single error: the fetched path on success,
// otherwise one of the package's error types or a context error.
func Await[In any](ctx context.Context, d Driver, b Backend[In], in In, dest string) (string, error) {
	out, err := Run(ctx, d, b, in, dest)
	if err != nil {
		return "", err
	}
	if err := out.Err(); err != nil {
		return "", err
	}
	return out.Path, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
