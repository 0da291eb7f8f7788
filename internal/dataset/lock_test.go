package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_Exclusive(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "ceps.json"))

	l, err := AcquireLock(context.Background(), path, 0, time.Second)
	require.NoError(t, err)

	_, err = AcquireLock(context.Background(), path, 0, 150*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l.Release())
	l2, err := AcquireLock(context.Background(), path, 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestLock_WaitsForRelease(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "ceps.json"))
	l, err := AcquireLock(context.Background(), path, 0, time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = l.Release()
	}()

	l2, err := AcquireLock(context.Background(), path, 0, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, l2.Release())
}

func TestLock_ReclaimsStale(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "ceps.json"))
	require.NoError(t, os.WriteFile(path, []byte("1 old\n"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	l, err := AcquireLock(context.Background(), path, time.Hour, 0)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLock_ContextCancelled(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "ceps.json"))
	l, err := AcquireLock(context.Background(), path, 0, time.Second)
	require.NoError(t, err)
	defer l.Release() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = AcquireLock(ctx, path, 0, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLock_ReleaseTwice(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "ceps.json"))
	l, err := AcquireLock(context.Background(), path, 0, time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release())
	assert.NoError(t, l.Release())
}

func TestReclaimStale_KeepsFreshReplacement(t *testing.T) {
	dir := t.TempDir()
	path := LockPath(filepath.Join(dir, "ceps.json"))

	require.NoError(t, os.WriteFile(path, []byte("1 old\n"), 0o644))
	staleInfo, err := os.Stat(path)
	require.NoError(t, err)

	// Another waiter reclaims first and takes the lock. The old file is kept
	// aside so the new lock cannot reuse its inode.
	require.NoError(t, os.Rename(path, filepath.Join(dir, "held")))
	require.NoError(t, os.WriteFile(path, []byte("2 fresh\n"), 0o644))

	require.NoError(t, reclaimStale(path, staleInfo))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2 fresh\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"ceps.json.lock", "held"}, names)
}

func TestReclaimStale_RemovesStale(t *testing.T) {
	dir := t.TempDir()
	path := LockPath(filepath.Join(dir, "ceps.json"))
	require.NoError(t, os.WriteFile(path, []byte("1 old\n"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, reclaimStale(path, info))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReclaimStale_AlreadyGone(t *testing.T) {
	path := LockPath(filepath.Join(t.TempDir(), "ceps.json"))
	require.NoError(t, os.WriteFile(path, []byte("1 old\n"), 0o644))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	assert.NoError(t, reclaimStale(path, info))
}
