package syncbox

import (
	"hash/maphash"
	"sync/atomic"
)

// defaultBuckets is the bucket count used by NewAtomicHashMap. Power of
// two, so bucket selection is a mask instead of a modulo.
const defaultBuckets = 256

// AtomicHashMap is a handle to a concurrent hash map partitioned into a
// fixed set of buckets, each protected by its own Mutex. Operations on
// different buckets never block each other; within a bucket, lookups share
// the lock in group mode while mutations take it exclusively.
//
// Get and GetMut return guards rather than copies: the bucket lock is held
// until the guard is released, which is what makes "read the value" and
// "mutate the value in place" atomic with respect to Insert and Remove on
// the same bucket. Release guards promptly: a held read guard delays
// writers to that bucket, and vice versa.
//
// No operation ever holds two bucket locks, so there is no lock ordering to
// get wrong: Range walks buckets strictly one at a time.
//
// The map handle is reference-counted like every other handle here: Clone
// shares the same buckets, Drop releases the handle, the storage lives
// until the last handle is gone. A released handle panics on use.
type AtomicHashMap[K comparable, V any] struct {
	inner *mapInner[K, V]
}

type mapInner[K comparable, V any] struct {
	seed    maphash.Seed
	mask    uint64
	buckets []mapBucket[K, V]
	size    atomic.Int64
	refs    atomic.Int64
}

type mapBucket[K comparable, V any] struct {
	lock *Mutex
	head *mapEntry[K, V] // mutated only under the bucket's exclusive lock
}

type mapEntry[K comparable, V any] struct {
	key   K
	value V
	next  *mapEntry[K, V]
}

// NewAtomicHashMap returns a map handle with the default bucket count.
func NewAtomicHashMap[K comparable, V any]() *AtomicHashMap[K, V] {
	return NewAtomicHashMapWithBuckets[K, V](defaultBuckets)
}

// NewAtomicHashMapWithBuckets returns a map handle with at least n buckets,
// rounded up to a power of two. More buckets mean fewer cross-key
// collisions on the same lock; the count is fixed for the map's lifetime.
func NewAtomicHashMapWithBuckets[K comparable, V any](n int) *AtomicHashMap[K, V] {
	if n < 1 {
		n = 1
	}
	buckets := 1
	for buckets < n {
		buckets <<= 1
	}

	inner := &mapInner[K, V]{
		seed:    maphash.MakeSeed(),
		mask:    uint64(buckets - 1),
		buckets: make([]mapBucket[K, V], buckets),
	}
	for i := range inner.buckets {
		inner.buckets[i].lock = NewMutex()
	}
	inner.refs.Store(1)
	return &AtomicHashMap[K, V]{inner: inner}
}

func (m *AtomicHashMap[K, V]) live(op string) *mapInner[K, V] {
	inner := m.inner
	if inner == nil {
		panic("syncbox: " + op + " on a released AtomicHashMap handle")
	}
	return inner
}

// bucketFor selects the bucket for key by seeded hash. The seed is per-map,
// so bucket distribution cannot be provoked from outside.
func (mi *mapInner[K, V]) bucketFor(key K) *mapBucket[K, V] {
	h := maphash.Comparable(mi.seed, key)
	return &mi.buckets[h&mi.mask]
}

// findEntry walks the bucket chain for key. Caller holds the bucket lock in
// some mode.
func (b *mapBucket[K, V]) findEntry(key K) *mapEntry[K, V] {
	for e := b.head; e != nil; e = e.next {
		if e.key == key {
			return e
		}
	}
	return nil
}

// Insert stores value under key, replacing any previous value, and reports
// whether a previous value existed. Takes the bucket's exclusive lock for
// the duration of the operation.
func (m *AtomicHashMap[K, V]) Insert(key K, value V) bool {
	inner := m.live("Insert")
	b := inner.bucketFor(key)
	b.lock.Lock()
	if e := b.findEntry(key); e != nil {
		e.value = value
		b.lock.Unlock()
		return true
	}
	b.head = &mapEntry[K, V]{key: key, value: value, next: b.head}
	inner.size.Add(1)
	b.lock.Unlock()
	return false
}

// Get returns a read guard over the value stored under key. The bucket's
// lock is held in group mode until the guard is released: concurrent Gets
// on the same bucket proceed together, while Insert/Remove/GetMut wait.
// The second result is false when the key is absent (no guard is returned
// and no lock is held).
func (m *AtomicHashMap[K, V]) Get(key K) (*WatchGuard[V], bool) {
	inner := m.live("Get")
	b := inner.bucketFor(key)
	lock := b.lock.Clone()
	lock.LockGroup()
	e := b.findEntry(key)
	if e == nil {
		lock.UnlockGroup()
		lock.Drop()
		return nil, false
	}
	return newWatchGuard(&e.value, lock), true
}

// GetMut returns a write guard over the value stored under key, for
// in-place mutation. The bucket's lock is held exclusively until the guard
// is released; the mutation becomes visible to the next acquirer at that
// point. The second result is false when the key is absent.
func (m *AtomicHashMap[K, V]) GetMut(key K) (*WatchGuardMut[V], bool) {
	inner := m.live("GetMut")
	b := inner.bucketFor(key)
	lock := b.lock.Clone()
	lock.Lock()
	e := b.findEntry(key)
	if e == nil {
		lock.Unlock()
		lock.Drop()
		return nil, false
	}
	return newWatchGuardMut(&e.value, lock), true
}

// Remove deletes the entry under key and returns its value. Takes the
// bucket's exclusive lock. The second result is false when the key was
// absent.
func (m *AtomicHashMap[K, V]) Remove(key K) (V, bool) {
	inner := m.live("Remove")
	b := inner.bucketFor(key)
	b.lock.Lock()
	var prev *mapEntry[K, V]
	for e := b.head; e != nil; prev, e = e, e.next {
		if e.key != key {
			continue
		}
		if prev == nil {
			b.head = e.next
		} else {
			prev.next = e.next
		}
		inner.size.Add(-1)
		b.lock.Unlock()
		return e.value, true
	}
	b.lock.Unlock()
	var zero V
	return zero, false
}

// Len returns a snapshot of the entry count across all buckets.
func (m *AtomicHashMap[K, V]) Len() int {
	return int(m.live("Len").size.Load())
}

// IsEmpty reports whether the map held no entries at the moment of the
// check.
func (m *AtomicHashMap[K, V]) IsEmpty() bool {
	return m.Len() == 0
}

// Range visits entries bucket by bucket, stopping early if fn returns
// false. Each bucket is snapshotted under its group lock and emitted after
// the lock is released, so fn may freely operate on the map, including the
// bucket it just came from. Buckets are visited in index order, one lock at
// a time; entries observed in one bucket may be concurrently modified by
// the time a later bucket is visited (per-bucket consistency, not a global
// snapshot).
func (m *AtomicHashMap[K, V]) Range(fn func(key K, value V) bool) {
	inner := m.live("Range")
	for i := range inner.buckets {
		b := &inner.buckets[i]
		b.lock.LockGroup()
		var keys []K
		var values []V
		for e := b.head; e != nil; e = e.next {
			keys = append(keys, e.key)
			values = append(values, e.value)
		}
		b.lock.UnlockGroup()
		for j := range keys {
			if !fn(keys[j], values[j]) {
				return
			}
		}
	}
}

// RefCount returns a snapshot of the number of live handles.
func (m *AtomicHashMap[K, V]) RefCount() int64 {
	return m.live("RefCount").refs.Load()
}

// Clone returns a new handle sharing the same buckets.
func (m *AtomicHashMap[K, V]) Clone() *AtomicHashMap[K, V] {
	inner := m.live("Clone")
	inner.refs.Add(1)
	return &AtomicHashMap[K, V]{inner: inner}
}

// Drop releases this handle and poisons it. Dropping the last handle ends
// the bucket locks' lifecycle; outstanding guards keep their own lock
// handles, so they stay valid until released.
func (m *AtomicHashMap[K, V]) Drop() {
	inner := m.live("Drop")
	m.inner = nil
	n := inner.refs.Add(-1)
	if n < 0 {
		panic("syncbox: AtomicHashMap handle refcount underflow")
	}
	if n == 0 {
		for i := range inner.buckets {
			inner.buckets[i].lock.Drop()
		}
	}
}
