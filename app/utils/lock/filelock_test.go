// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package lock_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costplane/costplane/app/utils/lock"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "costplane.lock")
}

func TestUnit_Lock_AcquireRelease(t *testing.T) {
	path := lockPath(t)
	l := lock.NewFileLock(context.Background(), path)

	require.NoError(t, l.Acquire())
	assert.True(t, l.Held())
	assert.FileExists(t, path)

	require.NoError(t, l.Release())
	assert.False(t, l.Held())
	assert.NoFileExists(t, path)
}

func TestUnit_Lock_AcquireIsIdempotent(t *testing.T) {
	l := lock.NewFileLock(context.Background(), lockPath(t))
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
}

func TestUnit_Lock_SecondHolderBlocked(t *testing.T) {
	path := lockPath(t)
	first := lock.NewFileLock(context.Background(), path)
	require.NoError(t, first.Acquire())
	defer first.Release() //nolint:errcheck // cleanup

	second := lock.NewFileLock(context.Background(), path,
		lock.WithMaxRetry(2),
		lock.WithRetryInterval(10*time.Millisecond),
		lock.WithStaleTimeout(time.Hour),
	)
	err := second.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrMaxRetryExceeded)
	assert.False(t, second.Held())
}

func TestUnit_Lock_StaleLockReclaimed(t *testing.T) {
	path := lockPath(t)

	// a lock left behind by a dead process, last stamped long ago
	stale, err := json.Marshal(map[string]any{
		"hostname":  "gone-host",
		"pid":       999999,
		"timestamp": time.Now().Add(-time.Hour).UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, stale, 0o644))

	l := lock.NewFileLock(context.Background(), path,
		lock.WithMaxRetry(3),
		lock.WithRetryInterval(10*time.Millisecond),
		lock.WithStaleTimeout(time.Minute),
	)
	require.NoError(t, l.Acquire())
	assert.True(t, l.Held())
	require.NoError(t, l.Release())
}

func TestUnit_Lock_CorruptLockReclaimed(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	l := lock.NewFileLock(context.Background(), path,
		lock.WithMaxRetry(3),
		lock.WithRetryInterval(10*time.Millisecond),
	)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
}

func TestUnit_Lock_ReleaseWithoutAcquire(t *testing.T) {
	l := lock.NewFileLock(context.Background(), lockPath(t))
	assert.NoError(t, l.Release())
}

func TestUnit_Lock_CancelledContextStopsWaiting(t *testing.T) {
	path := lockPath(t)
	first := lock.NewFileLock(context.Background(), path)
	require.NoError(t, first.Acquire())
	defer first.Release() //nolint:errcheck // cleanup

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := lock.NewFileLock(ctx, path,
		lock.WithMaxRetry(5),
		lock.WithRetryInterval(50*time.Millisecond),
		lock.WithStaleTimeout(time.Hour),
	)
	err := second.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
