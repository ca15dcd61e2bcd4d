// Package flock provides advisory file locks that serialise concurrent generator runs.
package flock

import (
	"context"
	"os"
	"time"

	"github.com/alecthomas/errors"
	"github.com/jpillora/backoff"
)

// ErrLocked is returned when the lock is held elsewhere and the timeout expired.
var ErrLocked = errors.New("file is locked")

// Acquire an exclusive lock on path, creating the file if necessary.
//
// A timeout of zero makes a single attempt. The returned function releases the lock.
func Acquire(ctx context.Context, path string, timeout time.Duration) (release func() error, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600) //nolint
	if err != nil {
		return nil, errors.Errorf("failed to open lock file %s: %w", path, err)
	}
	deadline := time.Now().Add(timeout)
	retry := backoff.Backoff{Min: 10 * time.Millisecond, Max: 500 * time.Millisecond, Factor: 2, Jitter: true}
	for {
		err = tryLock(f)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrLocked) || !time.Now().Before(deadline) {
			_ = f.Close()
			return nil, errors.Errorf("%s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, errors.WithStack(ctx.Err())
		case <-time.After(min(retry.Duration(), time.Until(deadline))):
		}
	}
	return func() error {
		if err := unlock(f); err != nil {
			_ = f.Close()
			return errors.Errorf("failed to unlock %s: %w", path, err)
		}
		return errors.WithStack(f.Close())
	}, nil
}
