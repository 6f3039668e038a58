package syncbox

import "github.com/kolkov/syncbox/internal/typetag"

// Runtime downcasting over AnyRef. The handle type is deliberately free of
// type parameters; these package-level generics are where a concrete type
// re-enters the picture. Every accessor validates the cell's type tag (a
// stable per-type token recorded at construction), so a wrong guess is an
// ordinary absent result (Try* forms) or an explicit logic-error panic
// (unchecked forms), never a corrupted read.

// TryDowncast returns a copy of the payload if its recorded type is exactly
// T. On guarded cells the copy is taken under the group lock, so it can
// never tear against a concurrent Fill or guarded write.
func TryDowncast[T any](r *AnyRef) (T, bool) {
	c := r.live("TryDowncast")
	if !c.tag.Matches(typetag.Of[T]()) {
		var zero T
		return zero, false
	}
	return copyPayload[T](c), true
}

// Downcast is the unchecked form of TryDowncast: the caller asserts the
// payload type is already known. A mismatch is a logic error and panics.
func Downcast[T any](r *AnyRef) T {
	v, ok := TryDowncast[T](r)
	if !ok {
		panic("syncbox: Downcast to " + typetag.Of[T]().Name() +
			" of a " + r.live("Downcast").tag.Name() + " payload")
	}
	return v
}

// TryDowncastRef returns a read guard over the payload: the cell's lock is
// held in group mode until the guard is released, so concurrent readers
// share while a writer is excluded. Absent when the tag mismatches or the
// cell is immutable: an immutable payload has nothing to guard against, so
// TryDowncast covers it.
func TryDowncastRef[T any](r *AnyRef) (*WatchGuard[T], bool) {
	c := r.live("TryDowncastRef")
	if c.mu == nil || !c.tag.Matches(typetag.Of[T]()) {
		return nil, false
	}
	lock := c.mu.Clone()
	lock.LockGroup()
	return newWatchGuard(c.value.(*T), lock), true
}

// TryDowncastMut returns a write guard over the payload: the cell's lock is
// held exclusively until the guard is released. Absent when the tag
// mismatches or the cell is immutable.
func TryDowncastMut[T any](r *AnyRef) (*WatchGuardMut[T], bool) {
	c := r.live("TryDowncastMut")
	if c.mu == nil || !c.tag.Matches(typetag.Of[T]()) {
		return nil, false
	}
	lock := c.mu.Clone()
	lock.Lock()
	return newWatchGuardMut(c.value.(*T), lock), true
}

// DowncastMut is the unchecked form of TryDowncastMut; mutable access is
// asserted to be available. Panics on a type mismatch or an immutable cell.
func DowncastMut[T any](r *AnyRef) *WatchGuardMut[T] {
	g, ok := TryDowncastMut[T](r)
	if !ok {
		c := r.live("DowncastMut")
		if c.mu == nil {
			panic("syncbox: DowncastMut on an immutable cell")
		}
		panic("syncbox: DowncastMut to " + typetag.Of[T]().Name() +
			" of a " + c.tag.Name() + " payload")
	}
	return g
}

// TryUnwrap takes sole ownership of the payload, consuming the handle. It
// succeeds only when this is the last strong handle, so no other holder can
// observe a half-moved value. On failure the handle is unchanged:
//
//   - ErrTypeMismatch: T is not the recorded payload type.
//   - ErrNotUnique: other strong handles exist.
//
// The moved-out payload's drop hook does not run; ownership, including the
// duty to clean up, transfers to the caller.
func TryUnwrap[T any](r *AnyRef) (T, error) {
	var zero T
	c := r.live("TryUnwrap")
	if !c.tag.Matches(typetag.Of[T]()) {
		return zero, ErrTypeMismatch
	}
	if !c.strong.CompareAndSwap(1, 0) {
		return zero, ErrNotUnique
	}
	// Sole owner from here: no strong handle remains to read the payload
	// and upgrades can no longer revive the counter.
	r.cell = nil
	p := c.value.(*T)
	c.value = nil
	c.drop = nil
	c.decWeak() // release the phantom
	return *p, nil
}

// Fill replaces the payload with a new value of the same concrete type,
// under the cell's exclusive lock. The displaced value's drop hook runs
// (after the lock is released); the hook then applies to the new payload.
//
// Errors: ErrNotGuarded on an immutable cell, ErrTypeMismatch when T is not
// the recorded payload type. The tag is fixed at construction, so a cell
// never changes type mid-life.
func Fill[T any](r *AnyRef, value T) error {
	c := r.live("Fill")
	if c.mu == nil {
		return ErrNotGuarded
	}
	if !c.tag.Matches(typetag.Of[T]()) {
		return ErrTypeMismatch
	}
	c.mu.Lock()
	old := c.value
	c.value = &value
	hook := c.drop
	c.mu.Unlock()
	if hook != nil {
		hook(old)
	}
	return nil
}

// Map reads the payload as T and returns a new independent AnyRef over
// f(payload). The source handle is not consumed and the new cell shares
// nothing with the old one. ErrTypeMismatch when T is not the payload type.
func Map[T, U any](r *AnyRef, f func(T) U) (*AnyRef, error) {
	v, ok := TryDowncast[T](r)
	if !ok {
		return nil, ErrTypeMismatch
	}
	return New(f(v)), nil
}
