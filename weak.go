package syncbox

// WeakAnyRef is a weak handle: it observes a cell without keeping the
// payload alive. A weak handle has no payload access of its own; it must be
// upgraded to a strong handle first, and the upgrade fails permanently once
// the last strong handle has dropped.
//
// Like AnyRef, a weak handle is shared by Clone and released by Drop, and a
// released handle panics on use.
type WeakAnyRef struct {
	cell *cell
}

func (w *WeakAnyRef) live(op string) *cell {
	c := w.cell
	if c == nil {
		panic("syncbox: " + op + " on a released WeakAnyRef handle")
	}
	return c
}

// Upgrade attempts to convert the weak handle into a new strong handle.
// It succeeds exactly when the payload is still alive; after the last
// strong handle drops, every Upgrade returns false, forever. The weak
// handle itself remains valid either way.
func (w *WeakAnyRef) Upgrade() (*AnyRef, bool) {
	c := w.live("Upgrade")
	if !c.upgrade() {
		return nil, false
	}
	return &AnyRef{cell: c}, true
}

// Clone adds a weak reference and returns a new weak handle.
func (w *WeakAnyRef) Clone() *WeakAnyRef {
	c := w.live("Clone")
	c.incWeak()
	return &WeakAnyRef{cell: c}
}

// Drop releases this weak handle and poisons it. Dropping the last weak
// reference of a dead cell ends the cell's lifecycle.
func (w *WeakAnyRef) Drop() {
	c := w.live("Drop")
	w.cell = nil
	c.decWeak()
}

// StrongCount returns a snapshot of the cell's strong counter. Zero means
// the payload is gone and Upgrade can no longer succeed.
func (w *WeakAnyRef) StrongCount() int64 {
	return w.live("StrongCount").strongCount()
}

// WeakCount returns a snapshot of the number of live weak handles,
// excluding the phantom (see AnyRef.WeakCount).
func (w *WeakAnyRef) WeakCount() int64 {
	return w.live("WeakCount").weakCount()
}

// PtrEq reports whether two weak handles share the same cell.
func (w *WeakAnyRef) PtrEq(other *WeakAnyRef) bool {
	return w.live("PtrEq") == other.live("PtrEq")
}
