package syncbox

import (
	"sync/atomic"

	"github.com/kolkov/syncbox/internal/backoff"
	"github.com/kolkov/syncbox/internal/typetag"
)

const (
	// maxRefs caps both counters. A count this high can only come from a
	// clone leak in a loop; aborting beats a silent wraparound that would
	// free a live payload.
	maxRefs = int64(1) << 62

	// weakLocked marks the weak counter as transiently claimed by a
	// uniqueness probe. While the marker is in place weak increments spin.
	// The untyped shift keeps the expression representable; the marker sits
	// above maxRefs, so no legal count can collide with it.
	weakLocked = int64(1<<63 - 1)
)

// cell is the single shared allocation behind every smart-pointer handle in
// this package: one payload, two counters, a type tag, an optional lock.
//
// Counter protocol:
//
//   - strong counts live strong handles. It starts at 1 and the payload is
//     destroyed exactly when it transitions 1→0. It never recovers from 0:
//     upgrades increment only via compare-and-swap from a nonzero value.
//   - weak counts live weak handles plus one phantom reference owned
//     collectively by all strong handles. It starts at 1 (the phantom); the
//     final strong drop releases the phantom after destroying the payload,
//     and the cell's remaining resources are released when weak hits 0.
//
// The phantom is what lets the payload die eagerly, the moment the last
// strong handle goes, while weak handles keep the counters themselves
// observable until the last of them is gone.
//
// The payload is stored as `any` boxing a *T, so typed accessors can hand
// out stable pointers without the cell itself carrying a type parameter. The
// tag is immutable after construction; payload replacement preserves it.
type cell struct {
	strong atomic.Int64
	weak   atomic.Int64

	// mu guards payload access on mutable cells; nil for immutable cells.
	// Payload reads take group mode, payload writes exclusive mode.
	mu *Mutex

	// tag identifies the payload's concrete type. Never changes.
	tag typetag.Tag

	// drop, when set, runs exactly once per payload at destruction or
	// replacement. Cleared when ownership of the payload moves out.
	drop func(any)

	// value is the boxed *T payload; nil once destroyed.
	value any
}

func newCell(value any, tag typetag.Tag, guarded bool, drop func(any)) *cell {
	c := &cell{tag: tag, drop: drop, value: value}
	c.strong.Store(1)
	c.weak.Store(1) // the phantom
	if guarded {
		c.mu = NewMutex()
	}
	return c
}

// incStrong adds one strong reference. Only call while holding a strong
// handle; reviving a dead cell is upgrade's job, with its CAS loop.
func (c *cell) incStrong() {
	if c.strong.Add(1) > maxRefs {
		panic("syncbox: strong refcount overflow")
	}
}

// decStrong drops one strong reference. The 1→0 transition destroys the
// payload exactly once and releases the phantom weak. The atomic decrement
// orders every preceding payload access before the destruction.
func (c *cell) decStrong() {
	n := c.strong.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("syncbox: strong refcount underflow")
	}
	c.destroy()
	c.decWeak()
}

// destroy clears the payload and fires the drop hook. Reached only from the
// final strong drop, so no strong handle can still be reading.
func (c *cell) destroy() {
	v := c.value
	c.value = nil
	if hook := c.drop; hook != nil {
		c.drop = nil
		hook(v)
	}
}

// incWeak adds one weak reference, spinning out a transient uniqueness
// probe if one holds the counter.
func (c *cell) incWeak() {
	bo := backoff.New()
	for {
		w := c.weak.Load()
		if w == weakLocked {
			// The probe restores the counter in bounded steps.
			bo.Spin()
			continue
		}
		if w >= maxRefs {
			panic("syncbox: weak refcount overflow")
		}
		if c.weak.CompareAndSwap(w, w+1) {
			return
		}
		bo.Spin()
	}
}

// decWeak drops one weak reference. The 1→0 transition ends the cell's
// lifecycle: the collector reclaims the storage, and the cell's own lock
// handle is dropped here so the lock lifecycle ends deterministically too.
func (c *cell) decWeak() {
	n := c.weak.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("syncbox: weak refcount underflow")
	}
	if c.mu != nil {
		c.mu.Drop()
		c.mu = nil
	}
}

// upgrade attempts to add a strong reference on behalf of a weak handle.
// It must never increment from zero: once the payload died, the cell stays
// dead. Transient CAS losses against concurrent clones and drops resolve in
// bounded steps, so this spins without ever parking.
func (c *cell) upgrade() bool {
	bo := backoff.New()
	for {
		s := c.strong.Load()
		if s == 0 {
			return false
		}
		if s >= maxRefs {
			panic("syncbox: strong refcount overflow")
		}
		if c.strong.CompareAndSwap(s, s+1) {
			return true
		}
		bo.Spin()
	}
}

// isUnique reports whether the calling strong handle is the only handle of
// either kind. Claiming the weak counter with the marker makes the
// two-counter check atomic: no weak handle can appear mid-probe, and a
// concurrent probe simply reports non-unique.
func (c *cell) isUnique() bool {
	if !c.weak.CompareAndSwap(1, weakLocked) {
		return false
	}
	unique := c.strong.Load() == 1
	c.weak.Store(1)
	return unique
}

// strongCount returns a snapshot of the strong counter.
func (c *cell) strongCount() int64 {
	return c.strong.Load()
}

// weakCount returns a snapshot of the number of live weak handles. The
// phantom is excluded while strong handles keep it alive; a counter claimed
// by a uniqueness probe reads as zero, matching the fact that the probe can
// only claim it when no weak handles exist.
func (c *cell) weakCount() int64 {
	w := c.weak.Load()
	if w == weakLocked {
		return 0
	}
	if c.strong.Load() > 0 {
		return w - 1
	}
	return w
}

// copyPayload returns a copy of the payload. On guarded cells the whole
// typed copy happens under the group lock: both the box pointer (swapped by
// Fill) and the pointee (written in place by write guards) are only stable
// while the lock is held. The caller has already matched the tag.
func copyPayload[T any](c *cell) T {
	if c.mu == nil {
		return *c.value.(*T)
	}
	c.mu.LockGroup()
	v := *c.value.(*T)
	c.mu.UnlockGroup()
	return v
}
