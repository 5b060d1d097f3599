// Package lock keeps two resync runs from working on one index at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	cserrors "github.com/Aman-CERP/claimsync/internal/errors"
)

// retryDelay is how often a waiting Acquire polls the lock.
const retryDelay = 100 * time.Millisecond

// RunLock is a cross-process exclusive lock on a file.
type RunLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New returns an unlocked lock on path. The file is created on first use.
func New(path string) *RunLock {
	return &RunLock{
		path:  path,
		flock: flock.New(path),
	}
}

// Acquire takes the lock, waiting up to wait for another holder to let go.
// wait <= 0 tries once. A lock still held when the wait ends is reported as
// ERR_203_LOCK_HELD.
func (l *RunLock) Acquire(ctx context.Context, wait time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	var (
		acquired bool
		err      error
	)
	if wait <= 0 {
		acquired, err = l.flock.TryLock()
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		acquired, err = l.flock.TryLockContext(waitCtx, retryDelay)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = nil
		}
	}
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !acquired {
		return cserrors.New(cserrors.ErrCodeLockHeld,
			"another claimsync run holds "+l.path, nil).
			WithDetail("lock", l.path).
			WithSuggestion("Wait for the other run to finish, or remove the lock file if no run is active")
	}
	l.locked = true
	return nil
}

// Release gives the lock up. It is safe to call on an unlocked RunLock.
func (l *RunLock) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (l *RunLock) Path() string {
	return l.path
}

// Held reports whether this RunLock holds the lock.
func (l *RunLock) Held() bool {
	return l.locked
}
