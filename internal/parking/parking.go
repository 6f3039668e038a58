// Package parking implements the park/unpark mechanism behind blocking lock
// acquisition.
//
// A Waiter represents a single wait episode of one goroutine. Wakers hand the
// waiter a token through a buffered channel; the waiter blocks receiving it.
// Every waiter settles into exactly one of two outcomes, decided by a single
// compare-and-swap:
//
//   - woken: a waker delivered the token; Park has returned or will return.
//   - cancelled: the waiter made progress on its own (typically it acquired
//     the awaited resource while enqueueing) and will never park.
//
// The state machine closes the classic lost-wakeup races: a wake that loses
// the race against Cancel is simply not delivered and the waker moves on to
// the next queued waiter, while a cancel that loses against Wake leaves an
// undelivered token behind. That token is harmless, because a canceller by
// definition holds the resource and will trigger fresh wakes when it
// releases.
//
// A Queue is the park list: an unbounded FIFO of waiters guarded by a spin
// flag with adaptive backoff. All Queue operations are short (pointer swings
// only); the guard is never held across a park or a token send. Token sends
// themselves cannot block: the channel has capacity one and only the single
// Wake that wins the state CAS performs a send.
package parking

import (
	"sync/atomic"

	"github.com/kolkov/syncbox/internal/backoff"
)

// Waiter states. Transitions are waiting→woken and waiting→cancelled only.
const (
	stateWaiting int32 = iota
	stateWoken
	stateCancelled
)

// Waiter is one goroutine's wait episode. Create with NewWaiter, enqueue on
// a Queue, re-check the awaited condition, then Park. Never reused: a waiter
// that has been woken or cancelled stays settled forever.
type Waiter struct {
	state atomic.Int32
	token chan struct{}
}

// NewWaiter returns a waiter ready to be enqueued.
func NewWaiter() *Waiter {
	return &Waiter{token: make(chan struct{}, 1)}
}

// Wake attempts to deliver the wake token. It reports whether this call won
// the settlement race; false means the waiter was already woken or cancelled
// and nothing was delivered.
//
// The channel send cannot block: capacity is one and only the winning Wake
// performs a send. The send also establishes the happens-before edge between
// the waker's prior writes and the parked goroutine's resumption.
func (w *Waiter) Wake() bool {
	if !w.state.CompareAndSwap(stateWaiting, stateWoken) {
		return false
	}
	w.token <- struct{}{}
	return true
}

// Cancel marks the waiter as settled without a wake. It reports whether the
// cancellation won; false means a token is already in flight (or consumed)
// and the caller must treat the episode as woken.
//
// A caller whose Cancel returns false has raced with a waker. The stray
// token is intentionally left buffered and becomes garbage with the waiter.
func (w *Waiter) Cancel() bool {
	return w.state.CompareAndSwap(stateWaiting, stateCancelled)
}

// Park blocks until the wake token arrives.
//
// Must only be called after the waiter was enqueued and the awaited
// condition re-checked; calling Park on a cancelled waiter blocks forever.
func (w *Waiter) Park() {
	<-w.token
}

// Queue is a FIFO park list. The zero value is ready to use.
//
// The spin flag serializes the pointer manipulation; contenders back off
// adaptively. Queue never parks a goroutine itself.
type Queue struct {
	busy atomic.Bool
	size atomic.Int64
	head *qnode
	tail *qnode
}

type qnode struct {
	waiter *Waiter
	next   *qnode
}

// lock claims the spin flag, backing off while another operation is inside.
func (q *Queue) lock() {
	bo := backoff.New()
	for !q.busy.CompareAndSwap(false, true) {
		bo.Snooze()
	}
}

func (q *Queue) unlock() {
	q.busy.Store(false)
}

// Push appends a waiter at the tail.
func (q *Queue) Push(w *Waiter) {
	n := &qnode{waiter: w}
	q.lock()
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.size.Add(1)
	q.unlock()
}

// Pop removes and returns the waiter at the head, or nil if the queue is
// empty. The returned waiter may already be settled; callers that want a
// live one should use WakeOne.
func (q *Queue) Pop() *Waiter {
	q.lock()
	n := q.head
	if n == nil {
		q.unlock()
		return nil
	}
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size.Add(-1)
	q.unlock()
	return n.waiter
}

// Len returns a snapshot of the number of queued waiters, settled ones
// included.
func (q *Queue) Len() int {
	return int(q.size.Load())
}

// WakeOne pops waiters until one accepts the wake token, skipping settled
// entries. It reports whether any waiter was actually woken.
func (q *Queue) WakeOne() bool {
	for {
		w := q.Pop()
		if w == nil {
			return false
		}
		if w.Wake() {
			return true
		}
	}
}

// WakeAll drains the queue, waking every still-waiting entry, and returns
// the number of waiters woken.
func (q *Queue) WakeAll() int {
	woken := 0
	for {
		w := q.Pop()
		if w == nil {
			return woken
		}
		if w.Wake() {
			woken++
		}
	}
}
