package service

import (
	"context"
	"sync"
	"time"
)

// noteLocks serializes mutations per note id so the version compare and the
// paired write cannot interleave between two writers of the same note. Notes
// never contend with each other. Acquire gives up after the wait budget and
// returns ErrLockTimeout, which is a retryable failure, not a conflict.
type noteLocks struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
	wait  time.Duration
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func newNoteLocks(wait time.Duration) *noteLocks {
	return &noteLocks{
		slots: make(map[string]*lockSlot),
		wait:  wait,
	}
}

func (l *noteLocks) checkout(id string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[id]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		slot.ch <- struct{}{}
		l.slots[id] = slot
	}
	slot.refs++

	return slot
}

func (l *noteLocks) checkin(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot := l.slots[id]
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, id)
	}
}

func (l *noteLocks) Acquire(ctx context.Context, id string) error {
	slot := l.checkout(id)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case <-slot.ch:
		return nil
	case <-timer.C:
		l.checkin(id)
		return ErrLockTimeout
	case <-ctx.Done():
		l.checkin(id)
		return ctx.Err()
	}
}

func (l *noteLocks) Release(id string) {
	l.mu.Lock()
	slot := l.slots[id]
	l.mu.Unlock()

	slot.ch <- struct{}{}
	l.checkin(id)
}
