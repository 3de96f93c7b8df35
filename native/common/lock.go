package common

import "sync/atomic"

// ExecLock is a non-reentrant execution guard. A state-changing entry point
// holds it for its whole duration; a nested attempt to enter while it is held
// fails instead of blocking.
type ExecLock struct {
	held atomic.Bool
}

// Enter acquires the lock or returns ErrReentrantCall.
func (l *ExecLock) Enter() error {
	if !l.held.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

// Exit releases the lock.
func (l *ExecLock) Exit() {
	l.held.Store(false)
}

// Held reports whether an entry point currently owns the lock.
func (l *ExecLock) Held() bool {
	return l.held.Load()
}
