package syncbox_test

import (
	"fmt"
	"sync"

	"github.com/kolkov/syncbox"
)

// Example demonstrates the basic shared-ownership lifecycle: clone to
// share, drop to release, destruction on the last drop.
func Example() {
	r := syncbox.NewWithDrop("payload", func(v string) {
		fmt.Println("destroyed:", v)
	})

	c := r.Clone()
	fmt.Println("strong handles:", r.StrongCount())

	c.Drop()
	r.Drop() // last strong handle: the destructor runs here

	// Output:
	// strong handles: 2
	// destroyed: payload
}

// Example_weakReferences shows observation without ownership: a weak
// handle upgrades only while the payload is alive.
func Example_weakReferences() {
	r := syncbox.New(42)
	w := r.Downgrade()

	if up, ok := w.Upgrade(); ok {
		fmt.Println("upgraded:", syncbox.Downcast[int](up))
		up.Drop()
	}

	r.Drop()
	if _, ok := w.Upgrade(); !ok {
		fmt.Println("payload is gone")
	}
	w.Drop()

	// Output:
	// upgraded: 42
	// payload is gone
}

// Example_downcasting recovers the concrete type from a type-erased
// handle; a wrong guess is an ordinary absent result.
func Example_downcasting() {
	r := syncbox.New("hello")
	defer r.Drop()

	if s, ok := syncbox.TryDowncast[string](r); ok {
		fmt.Println("string:", s)
	}
	if _, ok := syncbox.TryDowncast[int](r); !ok {
		fmt.Println("not an int")
	}

	// Output:
	// string: hello
	// not an int
}

// ExampleArw shares a mutable value between goroutines, with guards
// serializing access.
func ExampleArw() {
	counter := syncbox.NewArw(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		h := counter.Clone()
		go func(local *syncbox.Arw[int]) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				g := local.Write()
				*g.Value()++
				g.Release()
			}
			local.Drop()
		}(h)
	}
	wg.Wait()

	g := counter.Read()
	fmt.Println("total:", g.Get())
	g.Release()
	counter.Drop()

	// Output:
	// total: 1000
}

// ExampleAtomicHashMap stores values under keys and hands back guards
// instead of bare values.
func ExampleAtomicHashMap() {
	m := syncbox.NewAtomicHashMap[string, int]()
	defer m.Drop()

	m.Insert("a", 1)
	m.Insert("b", 2)

	if g, ok := m.Get("b"); ok {
		fmt.Println("b =", g.Get())
		g.Release()
	}

	if g, ok := m.GetMut("a"); ok {
		g.Set(10)
		g.Release()
	}
	if g, ok := m.Get("a"); ok {
		fmt.Println("a =", g.Get())
		g.Release()
	}

	// Output:
	// b = 2
	// a = 10
}

// ExampleMutex_group takes the lock's group mode: any number of group
// holders share it, excluding exclusive acquirers for the duration.
func ExampleMutex_group() {
	m := syncbox.NewMutex()
	defer m.Drop()

	m.LockGroup()
	m.LockGroup() // group mode admits any number of holders
	fmt.Println("group held:", m.IsLockedGroup())

	m.UnlockGroup()
	m.UnlockGroup()
	fmt.Println("still held:", m.IsLocked())

	// Output:
	// group held: true
	// still held: false
}
