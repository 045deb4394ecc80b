package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/phrazzld/voicetask/internal/store"
)

var errLockBusy = errors.New("lock held by another process")

// LockFileName is the advisory lock file created inside the data directory.
const LockFileName = ".voicetask.lock"

func newLockBackoff(timeout time.Duration) backoff.BackOff {
	if timeout <= 0 {
		return &backoff.StopBackOff{}
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 25 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = timeout
	return bo
}

// acquireLock opens path and takes an exclusive lock on it, retrying while
// another process holds it for up to timeout.
func acquireLock(ctx context.Context, path string, timeout time.Duration) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	op := func() error {
		err := flockExclusive(f)
		if err == nil || errors.Is(err, errLockBusy) {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(newLockBackoff(timeout), ctx)); err != nil {
		_ = f.Close()
		if errors.Is(err, errLockBusy) {
			return nil, store.ErrLocked
		}
		return nil, fmt.Errorf("lock data directory: %w", err)
	}
	return f, nil
}

func releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	unlockErr := flockUnlock(f)
	closeErr := f.Close()
	return errors.Join(unlockErr, closeErr)
}
