package syncbox

import "sync/atomic"

// WatchGuard grants shared read access to a guarded payload for as long as
// the guard is live. The underlying lock is held in group mode, so any
// number of WatchGuards coexist while a writer is excluded.
//
// Release the guard on every exit path, typically `defer g.Release()`, to
// return the group slot. Release is idempotent; accessors on a released guard
// panic. The guard owns its own handle to the lock, so it stays valid even
// if the pointer it came from is dropped first.
type WatchGuard[T any] struct {
	v        *T
	lock     *Mutex
	released atomic.Bool
}

func newWatchGuard[T any](v *T, lock *Mutex) *WatchGuard[T] {
	return &WatchGuard[T]{v: v, lock: lock}
}

// Get returns a copy of the guarded value.
func (g *WatchGuard[T]) Get() T {
	if g.released.Load() {
		panic("syncbox: Get on a released WatchGuard")
	}
	return *g.v
}

// IsLocked reports whether the guard still holds its group slot.
func (g *WatchGuard[T]) IsLocked() bool {
	return !g.released.Load()
}

// Release returns the group slot and drops the guard's lock handle.
// Safe to call more than once; only the first call releases.
func (g *WatchGuard[T]) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.lock.UnlockGroup()
	g.lock.Drop()
}

// WatchGuardMut grants exclusive write access to a guarded payload for as
// long as the guard is live. The underlying lock is held in exclusive mode:
// no reader or other writer can touch the payload until Release.
//
// Mutations through Value or Set become visible to the next acquirer when
// the guard is released, per the lock's happens-before edge.
type WatchGuardMut[T any] struct {
	v        *T
	lock     *Mutex
	released atomic.Bool
}

func newWatchGuardMut[T any](v *T, lock *Mutex) *WatchGuardMut[T] {
	return &WatchGuardMut[T]{v: v, lock: lock}
}

// Value returns the guarded value for in-place access. The pointer must not
// be retained past Release.
func (g *WatchGuardMut[T]) Value() *T {
	if g.released.Load() {
		panic("syncbox: Value on a released WatchGuardMut")
	}
	return g.v
}

// Get returns a copy of the guarded value.
func (g *WatchGuardMut[T]) Get() T {
	if g.released.Load() {
		panic("syncbox: Get on a released WatchGuardMut")
	}
	return *g.v
}

// Set replaces the guarded value.
func (g *WatchGuardMut[T]) Set(value T) {
	if g.released.Load() {
		panic("syncbox: Set on a released WatchGuardMut")
	}
	*g.v = value
}

// IsLocked reports whether the guard still holds the exclusive lock.
func (g *WatchGuardMut[T]) IsLocked() bool {
	return !g.released.Load()
}

// Release unlocks and drops the guard's lock handle. Safe to call more
// than once; only the first call releases.
func (g *WatchGuardMut[T]) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.lock.Unlock()
	g.lock.Drop()
}
