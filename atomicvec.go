package syncbox

import (
	"sync/atomic"

	"github.com/kolkov/syncbox/internal/backoff"
)

// AtomicVec is a handle to a concurrent FIFO sequence: Push appends at the
// tail, Pop removes at the head, so elements come out in the order they went
// in. There is no capacity bound; Push always succeeds.
//
// Coordination is a spin flag with adaptive backoff rather than a full lock:
// every operation is a few pointer swings, far below the cost of parking, so
// contenders spin and yield but never block in the kernel sense. Concurrent
// Push/Pop pairs never lose, duplicate, or corrupt elements, and a popped
// element is owned solely by its caller.
//
// Like the pointer handles, an AtomicVec is reference-counted: Clone shares
// the same underlying sequence, Drop releases the handle, and the storage
// lives until the last handle is gone. A released handle panics on use.
type AtomicVec[T any] struct {
	inner *vecInner[T]
}

type vecInner[T any] struct {
	busy atomic.Bool
	size atomic.Int64
	refs atomic.Int64
	head *vecNode[T]
	tail *vecNode[T]
}

type vecNode[T any] struct {
	value T
	next  *vecNode[T]
}

// NewAtomicVec returns a handle to a fresh empty sequence.
func NewAtomicVec[T any]() *AtomicVec[T] {
	inner := &vecInner[T]{}
	inner.refs.Store(1)
	return &AtomicVec[T]{inner: inner}
}

// lock claims the spin flag for one short structural operation.
func (vi *vecInner[T]) lock() {
	bo := backoff.New()
	for !vi.busy.CompareAndSwap(false, true) {
		bo.Snooze()
	}
}

func (vi *vecInner[T]) unlock() {
	vi.busy.Store(false)
}

func (v *AtomicVec[T]) live(op string) *vecInner[T] {
	inner := v.inner
	if inner == nil {
		panic("syncbox: " + op + " on a released AtomicVec handle")
	}
	return inner
}

// Push appends value at the tail. Always succeeds.
func (v *AtomicVec[T]) Push(value T) {
	inner := v.live("Push")
	n := &vecNode[T]{value: value}
	inner.lock()
	if inner.tail == nil {
		inner.head = n
	} else {
		inner.tail.next = n
	}
	inner.tail = n
	inner.size.Add(1)
	inner.unlock()
}

// Pop removes and returns the element at the head, the oldest surviving
// Push. The second result is false when the sequence is empty.
func (v *AtomicVec[T]) Pop() (T, bool) {
	inner := v.live("Pop")
	inner.lock()
	n := inner.head
	if n == nil {
		inner.unlock()
		var zero T
		return zero, false
	}
	inner.head = n.next
	if inner.head == nil {
		inner.tail = nil
	}
	inner.size.Add(-1)
	inner.unlock()
	return n.value, true
}

// Len returns a snapshot of the element count.
func (v *AtomicVec[T]) Len() int {
	return int(v.live("Len").size.Load())
}

// IsEmpty reports whether the sequence held no elements at the moment of
// the check.
func (v *AtomicVec[T]) IsEmpty() bool {
	return v.Len() == 0
}

// Range visits a point-in-time snapshot of the sequence in FIFO order,
// stopping early if fn returns false. The snapshot is taken in one guarded
// pass; fn itself runs outside the guard, so it may Push, Pop, or Range
// freely without self-deadlock, at the price of possibly observing
// elements that a concurrent Pop has since claimed.
func (v *AtomicVec[T]) Range(fn func(T) bool) {
	inner := v.live("Range")
	inner.lock()
	snapshot := make([]T, 0, inner.size.Load())
	for n := inner.head; n != nil; n = n.next {
		snapshot = append(snapshot, n.value)
	}
	inner.unlock()
	for _, val := range snapshot {
		if !fn(val) {
			return
		}
	}
}

// RefCount returns a snapshot of the number of live handles.
func (v *AtomicVec[T]) RefCount() int64 {
	return v.live("RefCount").refs.Load()
}

// Clone returns a new handle sharing the same sequence.
func (v *AtomicVec[T]) Clone() *AtomicVec[T] {
	inner := v.live("Clone")
	inner.refs.Add(1)
	return &AtomicVec[T]{inner: inner}
}

// Drop releases this handle and poisons it. The sequence storage is
// reclaimed once the last handle is dropped.
func (v *AtomicVec[T]) Drop() {
	inner := v.live("Drop")
	v.inner = nil
	if n := inner.refs.Add(-1); n < 0 {
		panic("syncbox: AtomicVec handle refcount underflow")
	}
}
