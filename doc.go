// Package syncbox provides user-space synchronization and shared-ownership
// primitives: a dual-mode mutex, type-erased reference-counted handles with
// runtime downcasting, an always-guarded mutable box, and concurrent
// containers built on the same lock.
//
// The pieces share one engine. Every smart pointer allocates a single cell
// holding the payload, an atomic strong counter, an atomic weak counter, a
// runtime type tag, and (for mutable variants) a [Mutex]. Every contended
// path waits the same way: busy spin, then cooperative yield, then park.
//
// # Quick Start
//
// Share a value across goroutines without exposing its type:
//
//	ref := syncbox.New(42)
//	defer ref.Drop()
//
//	clone := ref.Clone() // hand this to another goroutine
//	go func() {
//		defer clone.Drop()
//		if v, ok := syncbox.TryDowncast[int](clone); ok {
//			use(v)
//		}
//	}()
//
// Mutate in place through a guard:
//
//	box := syncbox.NewArw("hello")
//	g := box.Write()
//	*g.Value() += " world"
//	g.Release()
//
// # API Overview
//
// The package provides:
//   - Locking: [Mutex] with exclusive mode ([Mutex.Lock]) and counted group
//     mode ([Mutex.LockGroup]), handle-refcounted via [Mutex.Clone]
//   - Type-erased sharing: [AnyRef], [WeakAnyRef], with generic accessors
//     [TryDowncast], [TryDowncastRef], [TryDowncastMut], [TryUnwrap],
//     [Fill], [Map]
//   - Guarded typed sharing: [Arw], [WeakArw], with [WatchGuard] and
//     [WatchGuardMut]
//   - Containers: [AtomicVec] (FIFO sequence), [AtomicHashMap] (bucketed
//     map with guard-returning lookups)
//   - Version information: [GetInfo], [Version]
//
// # Ownership Model
//
// Handles are explicit: share with Clone, release with Drop, observe with
// Downgrade/Upgrade. The payload's destructor (see [NewWithDrop]) runs
// exactly once, the moment the last strong handle drops; weak handles keep
// only the counters observable, and upgrading after the payload died fails
// permanently. Using a handle after dropping it panics rather than
// corrupting counts.
//
// Although the collector reclaims memory, releasing handles promptly is
// what the deterministic parts of the contract (destructor timing, lock
// lifecycle, upgrade failure) are defined in terms of.
//
// # Locking Model
//
// [Mutex] keeps its whole state in one atomic word: unlocked, exclusively
// locked, or N group holders. Group mode admits any number of concurrent
// holders and is reentrant by count; exclusive mode admits one. The two
// modes never coexist. Once an exclusive acquirer is waiting, new group
// acquisitions park behind it, so group traffic cannot starve a writer.
// Misusing the lock by releasing a mode that is not held panics.
//
// # Error Taxonomy
//
// Contention is never an error; an operation blocks and then succeeds.
// Absence (a failed [TryDowncast], a dead [WeakAnyRef.Upgrade], an empty
// [AtomicVec.Pop]) is an ok=false result. Recoverable multi-cause failures
// return sentinel errors ([ErrTypeMismatch], [ErrNotUnique],
// [ErrNotGuarded]). Programming errors panic: lock misuse, unchecked
// downcast mismatch, use of a released handle.
package syncbox
