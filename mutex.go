package syncbox

import (
	"sync/atomic"

	"github.com/kolkov/syncbox/internal/backoff"
	"github.com/kolkov/syncbox/internal/parking"
)

// Lock word encoding. The entire lock state lives in one atomically-updated
// int64 so that every observation is a single load and every transition is a
// single compare-and-swap:
//
//	 0    unlocked
//	-1    exclusively locked
//	 N>0  N outstanding group holders
//
// Exclusive and group mode can never coexist: -1 and N>0 are disjoint values
// of the same word, so the invariant holds by construction rather than by
// protocol.
const (
	unlocked  int64 = 0
	exclusive int64 = -1
)

// lockInner is the shared lock storage. Every Mutex handle produced by
// cloning points at the same lockInner.
type lockInner struct {
	// state is the lock word (see encoding above).
	state atomic.Int64

	// exclWaiting counts exclusive acquirers in the slow path. While it is
	// nonzero new group acquisitions are refused admission, which is what
	// bounds group throughput over a pending exclusive request (the bound
	// is zero admissions).
	exclWaiting atomic.Int64

	// refs counts live handles to this lock.
	refs atomic.Int64

	// parkExcl and parkGroup hold parked waiters per acquisition mode.
	parkExcl  parking.Queue
	parkGroup parking.Queue
}

// Mutex is a handle to a user-space lock supporting two acquisition modes:
// exclusive (one holder) and group (any number of concurrent holders,
// counted). The two modes are mutually exclusive with each other.
//
// A Mutex handle is reference-counted: Clone returns a new handle sharing
// the same lock word, so unrelated owners can keep the one lock alive for as
// long as any of them needs it. The lock storage is released when the last
// handle is dropped; dropping the last handle while the lock is held is a
// programming error and panics.
//
// Acquisition blocks in three escalating phases (busy spin, cooperative
// yield, park) so short critical sections never pay for a kernel-mediated
// sleep. Misuse (unlocking a mode that is not held) panics rather than
// corrupting the lock word; contention is never an error.
//
// Fairness: the instant an exclusive acquirer enters the contended path, new
// group acquisitions stop being admitted and park, so a stream of group
// lockers cannot starve an exclusive request. The reverse preference is
// deliberate: pending exclusive waiters are woken before a parked group
// cohort.
type Mutex struct {
	inner *lockInner
}

// NewMutex returns a handle to a fresh unlocked lock.
func NewMutex() *Mutex {
	inner := &lockInner{}
	inner.refs.Store(1)
	return &Mutex{inner: inner}
}

// Lock acquires the lock in exclusive mode, blocking while any holder,
// exclusive or group, is inside.
//
// The fast path is a single compare-and-swap. Under contention the caller
// spins, then yields, then parks until a releaser hands it a wake.
func (m *Mutex) Lock() {
	if m.inner.state.CompareAndSwap(unlocked, exclusive) {
		return
	}
	m.lockSlow()
}

func (m *Mutex) lockSlow() {
	inner := m.inner

	// Registering in exclWaiting closes group admission for the duration
	// of the wait (fairness bound: zero group admissions while an
	// exclusive request is pending).
	inner.exclWaiting.Add(1)

	bo := backoff.New()
	for {
		if inner.state.CompareAndSwap(unlocked, exclusive) {
			inner.exclWaiting.Add(-1)
			return
		}
		if !bo.IsCompleted() {
			bo.Snooze()
			continue
		}

		// Spinning and yielding are exhausted: park. The enqueue must be
		// followed by one more acquisition attempt, because a releaser that
		// ran between our last failed CAS and the Push has already issued
		// its wakes and will not look at the queue again.
		w := parking.NewWaiter()
		inner.parkExcl.Push(w)
		if inner.state.CompareAndSwap(unlocked, exclusive) {
			inner.exclWaiting.Add(-1)
			// Settle the queued waiter so a future wake is not wasted on
			// it. Losing this race leaves a stray token behind, which is
			// compensated: we hold the lock, so our own Unlock will wake
			// the next waiter.
			w.Cancel()
			return
		}
		w.Park()
		bo.Reset()
	}
}

// TryLock attempts to acquire the lock in exclusive mode without blocking.
// It reports whether the lock was acquired.
func (m *Mutex) TryLock() bool {
	return m.inner.state.CompareAndSwap(unlocked, exclusive)
}

// Unlock releases an exclusive hold and wakes the next waiter: a parked
// exclusive acquirer if there is one, otherwise the entire parked group
// cohort.
//
// Calling Unlock while the lock is not exclusively held panics.
func (m *Mutex) Unlock() {
	if !m.inner.state.CompareAndSwap(exclusive, unlocked) {
		panic("syncbox: Unlock of a Mutex that is not exclusively held")
	}
	m.inner.wakeNext()
}

// LockGroup acquires one group slot, blocking while the lock is held
// exclusively or while an exclusive acquirer is waiting.
//
// Group mode is reentrant by count: any number of LockGroup calls, from the
// same or different goroutines, stack up, and the lock leaves group mode
// only after a matching number of UnlockGroup calls. Note the fairness
// consequence: once an exclusive acquirer is waiting, new group acquisitions
// park, so a goroutine already holding a group slot must not block on
// re-acquiring the same Mutex (the same constraint sync.RWMutex documents
// for recursive read locking).
func (m *Mutex) LockGroup() {
	inner := m.inner
	if inner.exclWaiting.Load() == 0 {
		s := inner.state.Load()
		if s >= 0 && inner.state.CompareAndSwap(s, s+1) {
			return
		}
	}
	m.lockGroupSlow()
}

func (m *Mutex) lockGroupSlow() {
	inner := m.inner
	bo := backoff.New()
	for {
		if inner.exclWaiting.Load() == 0 {
			if s := inner.state.Load(); s >= 0 {
				if inner.state.CompareAndSwap(s, s+1) {
					// Admitted. Pull the rest of a parked cohort in:
					// group mode is open, so anyone parked on the group
					// queue can be admitted right now.
					inner.parkGroup.WakeAll()
					return
				}
				// CAS lost against a group peer; the word is still
				// group-open, retry immediately.
				bo.Spin()
				continue
			}
		}
		if !bo.IsCompleted() {
			bo.Snooze()
			continue
		}

		w := parking.NewWaiter()
		inner.parkGroup.Push(w)
		if inner.exclWaiting.Load() == 0 {
			if s := inner.state.Load(); s >= 0 && inner.state.CompareAndSwap(s, s+1) {
				// Same stray-token reasoning as the exclusive path: a
				// lost Cancel is compensated by our own release.
				w.Cancel()
				inner.parkGroup.WakeAll()
				return
			}
		}
		w.Park()
		bo.Reset()
	}
}

// UnlockGroup releases one group slot. Releasing the last slot wakes the
// next waiter, preferring a parked exclusive acquirer.
//
// Calling UnlockGroup while the lock is not in group mode panics.
func (m *Mutex) UnlockGroup() {
	inner := m.inner
	bo := backoff.New()
	for {
		s := inner.state.Load()
		if s <= 0 {
			panic("syncbox: UnlockGroup of a Mutex that is not group-held")
		}
		if inner.state.CompareAndSwap(s, s-1) {
			if s == 1 {
				inner.wakeNext()
			}
			return
		}
		// CAS lost against a group peer adjusting the same count.
		bo.Spin()
	}
}

// wakeNext hands the lock's release to waiting acquirers: one parked
// exclusive waiter wins outright; with none parked, the whole group cohort
// is released at once. Waiters that settled on their own are skipped.
func (li *lockInner) wakeNext() {
	if li.parkExcl.WakeOne() {
		return
	}
	li.parkGroup.WakeAll()
}

// IsLocked reports whether the lock is currently held in either mode.
// Snapshot only: the state may change before the caller acts on it.
func (m *Mutex) IsLocked() bool {
	return m.inner.state.Load() != unlocked
}

// IsLockedGroup reports whether the lock is currently held in group mode.
// Snapshot only.
func (m *Mutex) IsLockedGroup() bool {
	return m.inner.state.Load() > 0
}

// RefCount returns a snapshot of the number of live handles to this lock.
func (m *Mutex) RefCount() int64 {
	return m.inner.refs.Load()
}

// Clone returns a new handle sharing the same lock word. The two handles
// are interchangeable; locking through one and unlocking through the other
// is legal.
func (m *Mutex) Clone() *Mutex {
	inner := m.inner
	if inner == nil {
		panic("syncbox: Clone of a released Mutex handle")
	}
	inner.refs.Add(1)
	return &Mutex{inner: inner}
}

// Drop releases this handle. The handle is poisoned and must not be used
// again. Dropping the last handle releases the lock storage; doing so while
// the lock is held panics, since an outstanding holder would be left with a
// lock nobody can legally own.
func (m *Mutex) Drop() {
	inner := m.inner
	if inner == nil {
		panic("syncbox: Drop of a released Mutex handle")
	}
	m.inner = nil
	switch n := inner.refs.Add(-1); {
	case n > 0:
	case n == 0:
		if inner.state.Load() != unlocked {
			panic("syncbox: last Mutex handle dropped while the lock is held")
		}
		// Storage reclamation itself is the collector's job; poisoning
		// the handle above is what enforces the lifecycle.
	default:
		panic("syncbox: Mutex handle refcount underflow")
	}
}
