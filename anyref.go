package syncbox

import (
	"unsafe"

	"github.com/kolkov/syncbox/internal/typetag"
)

// AnyRef is a strong, clonable handle to a type-erased shared value.
//
// The handle keeps the payload alive: the payload's destructor runs exactly
// once, when the last strong handle is dropped. Weak observers are split off
// with Downgrade. The concrete type is erased from the handle and
// recovered at runtime by the generic accessors (TryDowncast, Downcast,
// TryDowncastRef, TryDowncastMut, TryUnwrap, Fill, Map), which validate the
// recorded type tag on every attempt.
//
// Handles built by New and NewWithDrop carry an internal Mutex: payload
// reads take its group mode and guarded mutation its exclusive mode, so any
// number of readers share the cell while a writer excludes them all.
// NewImmutable omits the lock for payloads that never change.
//
// An AnyRef value is affine, not copyable: share by Clone, release by Drop.
// Methods on a released handle panic. A single handle is not safe for
// concurrent method calls; clones are the unit of cross-goroutine sharing.
type AnyRef struct {
	cell *cell
}

// New allocates a shared cell over value and returns the first strong
// handle. The cell is guarded: mutable downcasts are available and payload
// access is lock-coordinated.
func New[T any](value T) *AnyRef {
	return &AnyRef{cell: newCell(&value, typetag.Of[T](), true, nil)}
}

// NewWithDrop is New with a destructor hook. The hook observes destruction
// timing: it runs exactly once, when the last strong handle drops. It does
// not run when the payload's ownership is moved out by TryUnwrap.
func NewWithDrop[T any](value T, drop func(T)) *AnyRef {
	var hook func(any)
	if drop != nil {
		hook = func(v any) {
			drop(*v.(*T))
		}
	}
	return &AnyRef{cell: newCell(&value, typetag.Of[T](), true, hook)}
}

// NewImmutable allocates an unguarded cell: no lock, copy-out downcasts
// only. Guard-returning accessors and Fill report absence/ErrNotGuarded on
// handles built this way.
func NewImmutable[T any](value T) *AnyRef {
	return &AnyRef{cell: newCell(&value, typetag.Of[T](), false, nil)}
}

// live returns the cell or panics if the handle was consumed or dropped.
func (r *AnyRef) live(op string) *cell {
	c := r.cell
	if c == nil {
		panic("syncbox: " + op + " on a released AnyRef handle")
	}
	return c
}

// Clone adds a strong reference and returns a new handle to the same cell.
func (r *AnyRef) Clone() *AnyRef {
	c := r.live("Clone")
	c.incStrong()
	return &AnyRef{cell: c}
}

// Drop releases this strong handle and poisons it. Dropping the last strong
// handle destroys the payload (running any drop hook) and releases the
// phantom weak reference.
func (r *AnyRef) Drop() {
	c := r.live("Drop")
	r.cell = nil
	c.decStrong()
}

// Downgrade adds a weak reference and returns a weak handle to the same
// cell. The strong handle remains valid.
func (r *AnyRef) Downgrade() *WeakAnyRef {
	c := r.live("Downgrade")
	c.incWeak()
	return &WeakAnyRef{cell: c}
}

// StrongCount returns a snapshot of the number of live strong handles.
// Snapshot only: concurrent clones and drops may move it immediately.
func (r *AnyRef) StrongCount() int64 {
	return r.live("StrongCount").strongCount()
}

// WeakCount returns a snapshot of the number of live weak handles,
// excluding the phantom reference the strong handles hold.
func (r *AnyRef) WeakCount() int64 {
	return r.live("WeakCount").weakCount()
}

// IsUnique reports whether this is the only handle, strong or weak, to the
// cell. Unlike comparing counts separately, the answer is atomic: no weak
// handle can be created mid-check.
func (r *AnyRef) IsUnique() bool {
	return r.live("IsUnique").isUnique()
}

// IsLocked reports whether the cell's lock is currently held in any mode.
// Always false for immutable cells. Snapshot only.
func (r *AnyRef) IsLocked() bool {
	c := r.live("IsLocked")
	return c.mu != nil && c.mu.IsLocked()
}

// TypeName returns a human-readable name of the payload's concrete type.
// Diagnostics only; downcasts compare tags, never names.
func (r *AnyRef) TypeName() string {
	return r.live("TypeName").tag.Name()
}

// PtrEq reports whether two handles share the same cell.
func (r *AnyRef) PtrEq(other *AnyRef) bool {
	return r.live("PtrEq") == other.live("PtrEq")
}

// IntoRaw consumes the handle and returns the cell's address for advanced
// interop. The strong count stays raised: converting out and never calling
// FromRaw leaks the cell by design, keeping the payload alive forever.
func (r *AnyRef) IntoRaw() unsafe.Pointer {
	c := r.live("IntoRaw")
	r.cell = nil
	return unsafe.Pointer(c)
}

// FromRaw rebuilds a strong handle from a pointer previously produced by
// IntoRaw, rebalancing the strong count that IntoRaw left raised. Passing
// anything else is undefined.
func FromRaw(p unsafe.Pointer) *AnyRef {
	if p == nil {
		panic("syncbox: FromRaw of a nil pointer")
	}
	return &AnyRef{cell: (*cell)(p)}
}
