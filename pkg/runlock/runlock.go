// Package runlock guards the warehouse against concurrent ETL runs.
package runlock

import (
	"context"
	"errors"
	"sync/atomic"
)

var (
	// ErrLocked is returned when another run holds the lock
	ErrLocked = errors.New("run lock is held by another run")
	// ErrLockNotHeld is returned when releasing a lock this process does not hold
	ErrLockNotHeld = errors.New("run lock not held")
	// ErrLockLost is the cancellation cause of a run whose lease was taken over
	ErrLockLost = errors.New("run lock lost while running")
)

// Locker is a non-blocking mutual exclusion lock over ETL runs.
type Locker interface {
	// TryLock acquires the lock or returns ErrLocked without waiting.
	TryLock(ctx context.Context) error
	// Unlock releases a lock acquired by TryLock.
	Unlock(ctx context.Context) error
	// Held reports whether this process currently holds the lock.
	Held() bool
	// Lost is closed when a lock acquired by TryLock stops being ours before
	// Unlock. A nil channel means the lock cannot be lost.
	Lost() <-chan struct{}
}

// Local is an in-process lock for single-process deployments such as the CLI.
type Local struct {
	held atomic.Bool
}

// NewLocal creates an unlocked in-process lock.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryLock(_ context.Context) error {
	if !l.held.CompareAndSwap(false, true) {
		return ErrLocked
	}

	return nil
}

func (l *Local) Unlock(_ context.Context) error {
	if !l.held.CompareAndSwap(true, false) {
		return ErrLockNotHeld
	}

	return nil
}

func (l *Local) Held() bool {
	return l.held.Load()
}

func (l *Local) Lost() <-chan struct{} {
	return nil
}

var _ Locker = (*Local)(nil)
