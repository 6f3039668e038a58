package syncbox

import (
	"unsafe"

	"github.com/kolkov/syncbox/internal/typetag"
)

// Arw is a strong handle to a shared value whose primary purpose is guarded
// mutation: every Arw carries a mandatory Mutex, and all payload access
// flows through guards. Read takes the lock in group mode (concurrent
// readers), Write in exclusive mode (one writer, no readers).
//
// Ownership and counting rules are identical to AnyRef: Clone/Drop move the
// strong counter, Downgrade/Upgrade the weak one, the payload dies with the
// last strong handle. Unlike AnyRef the concrete type is part of the handle,
// so access needs no runtime tag checks; the tag is still recorded for raw
// interop (ArwFromRaw re-validates it).
type Arw[T any] struct {
	cell *cell
}

// NewArw allocates a guarded shared cell over value and returns the first
// strong handle.
func NewArw[T any](value T) *Arw[T] {
	return &Arw[T]{cell: newCell(&value, typetag.Of[T](), true, nil)}
}

func (a *Arw[T]) live(op string) *cell {
	c := a.cell
	if c == nil {
		panic("syncbox: " + op + " on a released Arw handle")
	}
	return c
}

// Clone adds a strong reference and returns a new handle to the same cell.
func (a *Arw[T]) Clone() *Arw[T] {
	c := a.live("Clone")
	c.incStrong()
	return &Arw[T]{cell: c}
}

// Drop releases this strong handle and poisons it.
func (a *Arw[T]) Drop() {
	c := a.live("Drop")
	a.cell = nil
	c.decStrong()
}

// Downgrade adds a weak reference and returns a weak handle.
func (a *Arw[T]) Downgrade() *WeakArw[T] {
	c := a.live("Downgrade")
	c.incWeak()
	return &WeakArw[T]{cell: c}
}

// Read acquires the lock in group mode and returns a read guard. Concurrent
// Read guards coexist; a Write guard excludes them all. Blocks while a
// writer is inside.
func (a *Arw[T]) Read() *WatchGuard[T] {
	c := a.live("Read")
	lock := c.mu.Clone()
	lock.LockGroup()
	return newWatchGuard(c.value.(*T), lock)
}

// Write acquires the lock exclusively and returns a write guard. Blocks
// while any guard, read or write, is outstanding.
func (a *Arw[T]) Write() *WatchGuardMut[T] {
	c := a.live("Write")
	lock := c.mu.Clone()
	lock.Lock()
	return newWatchGuardMut(c.value.(*T), lock)
}

// TryWrite attempts to acquire a write guard without blocking.
func (a *Arw[T]) TryWrite() (*WatchGuardMut[T], bool) {
	c := a.live("TryWrite")
	lock := c.mu.Clone()
	if !lock.TryLock() {
		lock.Drop()
		return nil, false
	}
	return newWatchGuardMut(c.value.(*T), lock), true
}

// TryUnwrap takes sole ownership of the payload, consuming the handle.
// Succeeds only when this is the last strong handle; otherwise returns
// ErrNotUnique and the handle stays valid.
func (a *Arw[T]) TryUnwrap() (T, error) {
	var zero T
	c := a.live("TryUnwrap")
	if !c.strong.CompareAndSwap(1, 0) {
		return zero, ErrNotUnique
	}
	a.cell = nil
	p := c.value.(*T)
	c.value = nil
	c.drop = nil
	c.decWeak()
	return *p, nil
}

// StrongCount returns a snapshot of the number of live strong handles.
func (a *Arw[T]) StrongCount() int64 {
	return a.live("StrongCount").strongCount()
}

// WeakCount returns a snapshot of the number of live weak handles,
// excluding the phantom.
func (a *Arw[T]) WeakCount() int64 {
	return a.live("WeakCount").weakCount()
}

// IsUnique reports whether this is the only handle of either kind.
func (a *Arw[T]) IsUnique() bool {
	return a.live("IsUnique").isUnique()
}

// IsLocked reports whether the lock is held in any mode. Snapshot only.
func (a *Arw[T]) IsLocked() bool {
	return a.live("IsLocked").mu.IsLocked()
}

// PtrEq reports whether two handles share the same cell.
func (a *Arw[T]) PtrEq(other *Arw[T]) bool {
	return a.live("PtrEq") == other.live("PtrEq")
}

// IntoRaw consumes the handle and returns the cell's address. The strong
// count stays raised; never converting back leaks the cell by design.
func (a *Arw[T]) IntoRaw() unsafe.Pointer {
	c := a.live("IntoRaw")
	a.cell = nil
	return unsafe.Pointer(c)
}

// ArwFromRaw rebuilds a strong handle from a pointer produced by IntoRaw.
// The recorded tag is re-validated: rebuilding with the wrong type is a
// logic error and panics.
func ArwFromRaw[T any](p unsafe.Pointer) *Arw[T] {
	if p == nil {
		panic("syncbox: ArwFromRaw of a nil pointer")
	}
	c := (*cell)(p)
	if !c.tag.Matches(typetag.Of[T]()) {
		panic("syncbox: ArwFromRaw as " + typetag.Of[T]().Name() +
			" of a " + c.tag.Name() + " payload")
	}
	return &Arw[T]{cell: c}
}

// WeakArw is the weak counterpart of Arw: it observes the cell without
// keeping the payload alive and must be upgraded before use.
type WeakArw[T any] struct {
	cell *cell
}

func (w *WeakArw[T]) live(op string) *cell {
	c := w.cell
	if c == nil {
		panic("syncbox: " + op + " on a released WeakArw handle")
	}
	return c
}

// Upgrade attempts to convert into a new strong handle; false once the last
// strong handle has dropped, forever.
func (w *WeakArw[T]) Upgrade() (*Arw[T], bool) {
	c := w.live("Upgrade")
	if !c.upgrade() {
		return nil, false
	}
	return &Arw[T]{cell: c}, true
}

// Clone adds a weak reference and returns a new weak handle.
func (w *WeakArw[T]) Clone() *WeakArw[T] {
	c := w.live("Clone")
	c.incWeak()
	return &WeakArw[T]{cell: c}
}

// Drop releases this weak handle and poisons it.
func (w *WeakArw[T]) Drop() {
	c := w.live("Drop")
	w.cell = nil
	c.decWeak()
}

// StrongCount returns a snapshot of the cell's strong counter.
func (w *WeakArw[T]) StrongCount() int64 {
	return w.live("StrongCount").strongCount()
}

// WeakCount returns a snapshot of the number of live weak handles,
// excluding the phantom.
func (w *WeakArw[T]) WeakCount() int64 {
	return w.live("WeakCount").weakCount()
}
