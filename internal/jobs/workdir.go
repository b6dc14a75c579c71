package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"ai-things/clipcast/internal/utils"
)

const lockFileName = ".clipcast.lock"

// ErrWorkDirBusy means another run holds the work dir.
var ErrWorkDirBusy = errors.New("work dir is locked by another run")

// WorkDirLock is an exclusive claim on a work directory.
type WorkDirLock struct {
	lock *flock.Flock
	dir  string
}

// AcquireWorkDir locks dir, creating it if needed. With wait > 0 it retries
// until the lock is free, wait elapses or ctx ends.
func AcquireWorkDir(ctx context.Context, dir string, wait time.Duration) (*WorkDirLock, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))

	var ok bool
	var err error
	if wait > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		ok, err = lock.TryLockContext(waitCtx, 250*time.Millisecond)
		if err != nil && waitCtx.Err() != nil && ctx.Err() == nil {
			err = nil
		}
	} else {
		ok, err = lock.TryLock()
	}
	if err != nil {
		return nil, fmt.Errorf("acquire work dir lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", dir, ErrWorkDirBusy)
	}
	utils.Debug("work dir locked", "dir", dir)
	return &WorkDirLock{lock: lock, dir: dir}, nil
}

func (l *WorkDirLock) Release() {
	if l == nil || l.lock == nil {
		return
	}
	if err := l.lock.Unlock(); err != nil {
		utils.Warn("work dir unlock failed", "dir", l.dir, "err", err)
	}
}
