// Package guard implements the per-action loading guard: while an action is
// outstanding its trigger is refused instead of queued.
package guard

import "golang.org/x/sync/semaphore"

// Guard admits at most one holder at a time. The zero value is not usable; use New.
type Guard struct {
	sem *semaphore.Weighted
}

// New returns an idle guard.
func New() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// TryAcquire claims the guard without blocking. It returns a release func and
// true on success, or nil and false if the action is already in flight.
func (g *Guard) TryAcquire() (release func(), ok bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	var released bool
	return func() {
		if released {
			return
		}
		released = true
		g.sem.Release(1)
	}, true
}

// Busy reports whether the action is in flight.
func (g *Guard) Busy() bool {
	if g.sem.TryAcquire(1) {
		g.sem.Release(1)
		return false
	}
	return true
}
