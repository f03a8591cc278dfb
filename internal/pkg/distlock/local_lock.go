package distlock

import (
	"context"
	"sync"
)

// LocalLocks is an in-process keyed mutex for single-instance deployments.
type LocalLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocks returns an empty lock table.
func NewLocalLocks() *LocalLocks {
	return &LocalLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock returns a lock handle for key; handles for the same key exclude
// each other.
func (l *LocalLocks) Lock(key string) *LocalLock {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	return &LocalLock{m: m}
}

// LocalLock is one holder's handle on a LocalLocks key.
type LocalLock struct {
	m    *sync.Mutex
	held bool
}

// Acquire uses TryLock and never blocks.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = l.m.TryLock()
	return l.held, nil
}

// Release unlocks if this handle holds the lock.
func (l *LocalLock) Release(_ context.Context) error {
	if l.held {
		l.held = false
		l.m.Unlock()
	}
	return nil
}
