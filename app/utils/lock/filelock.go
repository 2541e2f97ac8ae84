// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package lock provides a file-based lock for coordinating access to shared
// on-disk state across processes.
//
// A sync run rewrites cost-record partitions in place; two runs against the
// same database file must never interleave. The lock file carries JSON
// ownership metadata (hostname, pid, timestamp), is refreshed in the
// background while held, and is considered stale, and reclaimable, once its
// timestamp stops moving.
package lock

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrLockExists       = errors.New("lock already exists")
	ErrLockLost         = errors.New("lock lost")
	ErrLockCorrupt      = errors.New("corrupt lock file")
	ErrMaxRetryExceeded = errors.New("failed to acquire lock, max retries exceeded")
)

// Defaults tuned for short CLI runs sharing one database file.
var (
	DefaultStaleTimeout    = 30 * time.Second
	DefaultRefreshInterval = 10 * time.Second
	DefaultRetryInterval   = time.Second
	DefaultMaxRetry        = 5
)

const lockFilePermissions = 0o644

// owner is the JSON payload inside the lock file.
type owner struct {
	Hostname  string    `json:"hostname"`
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}

// FileLock is a file-based lock with stale detection. Safe for use from
// multiple goroutines; the real coordination is between processes.
type FileLock struct {
	ctx             context.Context
	path            string
	staleTimeout    time.Duration
	refreshInterval time.Duration
	retryInterval   time.Duration
	maxRetry        int

	hostname string
	pid      int

	mu      sync.Mutex
	held    bool
	stopRef chan struct{}
	refDone chan struct{}
}

// Option configures a FileLock.
type Option func(*FileLock)

// WithStaleTimeout sets how long an unrefreshed lock survives before another
// process may reclaim it.
func WithStaleTimeout(d time.Duration) Option {
	return func(l *FileLock) { l.staleTimeout = d }
}

// WithRefreshInterval sets how often the holder re-stamps the lock.
func WithRefreshInterval(d time.Duration) Option {
	return func(l *FileLock) { l.refreshInterval = d }
}

// WithRetryInterval sets the wait between acquisition attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(l *FileLock) { l.retryInterval = d }
}

// WithMaxRetry sets how many acquisition attempts to make.
func WithMaxRetry(n int) Option {
	return func(l *FileLock) { l.maxRetry = n }
}

// NewFileLock creates a lock on the given path. Nothing touches the
// filesystem until Acquire.
func NewFileLock(ctx context.Context, path string, opts ...Option) *FileLock {
	hostname, _ := os.Hostname()
	l := &FileLock{
		ctx:             ctx,
		path:            path,
		staleTimeout:    DefaultStaleTimeout,
		refreshInterval: DefaultRefreshInterval,
		retryInterval:   DefaultRetryInterval,
		maxRetry:        DefaultMaxRetry,
		hostname:        hostname,
		pid:             os.Getpid(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes the lock, retrying up to the configured limit and reclaiming
// stale locks left by dead processes.
func (l *FileLock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return nil
	}

	for attempt := 0; attempt < l.maxRetry; attempt++ {
		if attempt > 0 {
			select {
			case <-l.ctx.Done():
				return errors.Wrap(l.ctx.Err(), "waiting for lock")
			case <-time.After(l.retryInterval):
			}
		}

		err := l.tryCreate()
		if err == nil {
			l.held = true
			l.startRefresh()
			return nil
		}
		if !errors.Is(err, ErrLockExists) {
			return err
		}
		if l.reclaimIfStale() {
			continue
		}
	}
	return errors.Wrapf(ErrMaxRetryExceeded, "lock %s", l.path)
}

// Release drops the lock. Releasing a lock that was lost or never held is
// not an error.
func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held {
		return nil
	}
	l.held = false
	close(l.stopRef)
	<-l.refDone

	current, err := l.read()
	if err == nil && current.PID == l.pid && current.Hostname == l.hostname {
		return errors.Wrap(os.Remove(l.path), "removing lock file")
	}
	// someone else reclaimed it; leave their lock alone
	return nil
}

// Held reports whether this process currently holds the lock.
func (l *FileLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *FileLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, lockFilePermissions)
	if err != nil {
		if os.IsExist(err) {
			return ErrLockExists
		}
		return errors.Wrap(err, "creating lock file")
	}
	defer f.Close()
	return errors.Wrap(json.NewEncoder(f).Encode(owner{
		Hostname:  l.hostname,
		PID:       l.pid,
		Timestamp: time.Now().UTC(),
	}), "writing lock owner")
}

// reclaimIfStale removes the lock file when its timestamp has not moved
// within the stale timeout, and reports whether a retry is worthwhile.
func (l *FileLock) reclaimIfStale() bool {
	current, err := l.read()
	if err != nil {
		// unreadable lock files are treated as stale
		return os.Remove(l.path) == nil
	}
	if time.Since(current.Timestamp) < l.staleTimeout {
		return true // holder alive, retry after the interval
	}
	return os.Remove(l.path) == nil
}

func (l *FileLock) read() (*owner, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.Wrap(err, "reading lock file")
	}
	var o owner
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, errors.Wrapf(ErrLockCorrupt, "%s: %v", l.path, err)
	}
	return &o, nil
}

// startRefresh re-stamps the lock periodically so other processes do not
// mistake a long-running holder for a dead one.
func (l *FileLock) startRefresh() {
	l.stopRef = make(chan struct{})
	l.refDone = make(chan struct{})
	go func() {
		defer close(l.refDone)
		ticker := time.NewTicker(l.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-l.stopRef:
				return
			case <-l.ctx.Done():
				return
			case <-ticker.C:
				l.refresh()
			}
		}
	}()
}

func (l *FileLock) refresh() {
	current, err := l.read()
	if err != nil || current.PID != l.pid || current.Hostname != l.hostname {
		// lock reclaimed out from under us; stop pretending
		l.mu.Lock()
		if l.held {
			l.held = false
		}
		l.mu.Unlock()
		return
	}
	current.Timestamp = time.Now().UTC()
	raw, err := json.Marshal(current)
	if err != nil {
		return
	}
	_ = os.WriteFile(l.path, raw, lockFilePermissions)
}
