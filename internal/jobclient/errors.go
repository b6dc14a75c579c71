package jobclient

import (
	"fmt"
	"time"
)

// SubmissionError means the backend rejected or never received the job.
type SubmissionError struct {
	Backend string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submit failed: %v", e.Backend, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// TransientNetworkError is a status query that did not produce an answer.
// The driver retries these on the next tick.
type TransientNetworkError struct {
	Backend string
	JobID   string
	Err     error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: poll job %s: %v", e.Backend, e.JobID, e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// JobFailedError is a job the backend reported as failed.
type JobFailedError struct {
	Backend string
	JobID   string
	Reason  string
}

func (e *JobFailedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no reason given"
	}
	return fmt.Sprintf("%s: job %s failed: %s", e.Backend, e.JobID, reason)
}

// JobTimeoutError is a job that stayed non-terminal for the whole attempt budget.
type JobTimeoutError struct {
	Backend  string
	JobID    string
	Attempts int
	Waited   time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("%s: job %s not finished after %d attempts (%s)", e.Backend, e.JobID, e.Attempts, e.Waited.Truncate(time.Millisecond))
}

// DownloadError is a completed job whose artifact could not be retrieved.
type DownloadError struct {
	Backend string
	JobID   string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: fetch job %s result: %v", e.Backend, e.JobID, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
