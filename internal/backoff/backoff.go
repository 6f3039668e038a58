// Package backoff implements the adaptive wait strategy used by every
// contended path in this module.
//
// A Backoff escalates through three phases as an awaited atomic condition
// keeps failing:
//
//  1. Busy spin: a tight CPU loop of 2^step iterations. Cheapest when the
//     condition resolves within a few hundred cycles.
//  2. Cooperative yield: hand the P to the scheduler via runtime.Gosched.
//     Covers contention windows up to a few scheduler quanta.
//  3. Park advice: IsCompleted reports true. The Backoff never blocks by
//     itself; the caller is expected to move to its own parking path
//     (a waiter queue) once spinning and yielding have been exhausted.
//
// The primitive holds no memory across calls and cannot fail; it only burns
// CPU and scheduler time. One Backoff value is created per wait loop and
// never shared between goroutines.
package backoff

import "runtime"

const (
	// spinLimit bounds the busy-spin phase: steps 0..spinLimit spin
	// 2^step iterations each, so the longest single spin is 64 loops.
	spinLimit = 6

	// yieldLimit bounds the yield phase. Once step exceeds yieldLimit the
	// caller should stop burning CPU and park.
	yieldLimit = 10
)

// Backoff tracks the escalation state of one wait loop.
//
// Not safe for concurrent use; each waiting goroutine owns its own value.
type Backoff struct {
	step uint32
}

// New returns a Backoff at the start of the spin phase.
func New() *Backoff {
	return &Backoff{}
}

// Reset returns the Backoff to the start of the spin phase.
//
// Called after the awaited condition was observed, so the next wait on the
// same loop starts cheap again.
//
//go:nosplit
func (b *Backoff) Reset() {
	b.step = 0
}

// Spin performs one busy-spin episode and escalates within the spin phase.
//
// Spin never yields to the scheduler, which makes it the right choice for
// pure compare-and-swap retry loops where the competing update is already
// running on another core and will finish in bounded steps (counter bumps,
// slot claims). The episode length is capped at 2^spinLimit iterations no
// matter how often Spin is called.
func (b *Backoff) Spin() {
	steps := b.step
	if steps > spinLimit {
		steps = spinLimit
	}
	for i := uint32(0); i < 1<<steps; i++ {
		// Empty loop bodies are not eliminated by the compiler; this
		// burns a predictable handful of cycles per iteration.
	}
	if b.step <= spinLimit {
		b.step++
	}
}

// Snooze performs one wait episode and escalates through spin into yield.
//
// In the spin phase it behaves like Spin; past spinLimit it calls
// runtime.Gosched instead, letting other goroutines run. Use Snooze in lock
// acquisition loops where the holder may itself be descheduled.
func (b *Backoff) Snooze() {
	if b.step <= spinLimit {
		for i := uint32(0); i < 1<<b.step; i++ {
		}
	} else {
		runtime.Gosched()
	}
	if b.step <= yieldLimit {
		b.step++
	}
}

// IsYielding reports whether the Backoff has escalated past the busy-spin
// phase, i.e. subsequent Snooze calls will yield to the scheduler.
//
//go:nosplit
func (b *Backoff) IsYielding() bool {
	return b.step > spinLimit
}

// IsCompleted reports whether both spinning and yielding are exhausted.
//
// Once true, further Snooze calls keep yielding but will not make progress
// cheaper; the caller should park on its waiter queue instead.
//
//go:nosplit
func (b *Backoff) IsCompleted() bool {
	return b.step > yieldLimit
}

// Step returns the current escalation step. Diagnostics and tests only.
//
//go:nosplit
func (b *Backoff) Step() uint32 {
	return b.step
}
