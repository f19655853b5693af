// Package lock serializes work per key, either inside one process or across
// instances sharing a Redis server.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotAcquired is returned when the key stays held past the wait budget.
var ErrNotAcquired = errors.New("lock: not acquired")

// Unlock releases a held key.
type Unlock func() error

// Locker hands out exclusive access to a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Unlock, error)
}

// LocalLocker is a keyed mutex for single-instance deployments.
type LocalLocker struct {
	wait  time.Duration
	mu    sync.Mutex
	slots map[string]*slot
}

// slot is dropped from the map once no caller holds or waits on it.
type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker builds a LocalLocker that waits at most wait for a busy key.
// A non-positive wait means callers wait until their context ends.
func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{wait: wait, slots: make(map[string]*slot)}
}

func (l *LocalLocker) retain(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Acquire blocks until key is free, the wait budget elapses or ctx ends.
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	s := l.retain(key)

	var timeout <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case s.ch <- struct{}{}:
	case <-timeout:
		l.release(key, s)
		return nil, ErrNotAcquired
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
		return nil
	}, nil
}
