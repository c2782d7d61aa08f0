package redisclient

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalLocker is the single-process Locker used when no Redis is configured.
type LocalLocker struct {
	wait time.Duration

	mu    sync.Mutex
	locks map[string]*localSlot
}

// localSlot is dropped from the map once no caller holds or waits for it.
type localSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		wait:  wait,
		locks: make(map[string]*localSlot),
	}
}

func (l *LocalLocker) acquireSlot(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.locks[key]
	if !ok {
		s = &localSlot{ch: make(chan struct{}, 1)}
		l.locks[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) releaseSlot(key string, s *localSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.locks, key)
	}
}

// held reports how many keys are currently tracked.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *LocalLocker) WithProviderLock(ctx context.Context, providerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := lockKey(providerID, date)
	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		return ErrLockNotAcquired
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.ch }()

	return fn(ctx)
}
