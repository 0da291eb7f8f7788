package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrLocked is returned when the dataset lock could not be taken in time.
var ErrLocked = eris.New("dataset: locked by another run")

const lockPollInterval = 100 * time.Millisecond

// Lock is an exclusive lock file guarding the dataset's read-modify-write
// cycle across processes.
type Lock struct {
	path string
}

// LockPath returns the lock file used for the dataset at path.
func LockPath(datasetPath string) string {
	return datasetPath + ".lock"
}

// AcquireLock creates the lock file, waiting up to timeout for a holder to
// release it. Locks older than stale are considered abandoned and removed.
// stale <= 0 never reclaims.
func AcquireLock(ctx context.Context, path string, stale, timeout time.Duration) (*Lock, error) {
	log := zap.L().With(zap.String("component", "dataset.lock"), zap.String("path", path))
	deadline := time.Now().Add(timeout)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
			if cerr := f.Close(); cerr != nil {
				_ = os.Remove(path)
				return nil, ioErr("lock", path, cerr)
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, ioErr("lock", path, err)
		}

		if stale > 0 {
			if info, serr := os.Stat(path); serr == nil && time.Since(info.ModTime()) > stale {
				log.Warn("reclaiming stale dataset lock", zap.Time("locked_at", info.ModTime()))
				if rerr := reclaimStale(path, info); rerr != nil {
					return nil, rerr
				}
				continue
			}
		}

		if !time.Now().Before(deadline) {
			return nil, eris.Wrapf(ErrLocked, "lock %s", path)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// reclaimStale moves the stale lock described by info out of the way. The
// file is renamed to a unique name first so it can be checked: if another
// waiter already replaced it with a fresh lock, that lock is put back.
func reclaimStale(path string, info fs.FileInfo) error {
	moved := fmt.Sprintf("%s.stale-%d-%d", path, os.Getpid(), time.Now().UnixNano())
	if err := os.Rename(path, moved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ioErr("unlock stale", path, err)
	}

	got, err := os.Stat(moved)
	if err == nil && (!os.SameFile(info, got) || !got.ModTime().Equal(info.ModTime())) {
		// Link fails if yet another holder created path meanwhile.
		_ = os.Link(moved, path)
	}
	if err := os.Remove(moved); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioErr("unlock stale", moved, err)
	}
	return nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioErr("unlock", l.path, err)
	}
	return nil
}
