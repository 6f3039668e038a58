package syncbox

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInsertGetRoundTrip(t *testing.T) {
	m := NewAtomicHashMap[string, int]()
	defer m.Drop()

	replaced := m.Insert("answer", 42)
	assert.False(t, replaced)

	g, ok := m.Get("answer")
	require.True(t, ok)
	assert.Equal(t, 42, g.Get())
	g.Release()

	// The zero value is a value like any other.
	m.Insert("zero", 0)
	g, ok = m.Get("zero")
	require.True(t, ok)
	assert.Equal(t, 0, g.Get())
	g.Release()
}

func TestMapInsertReplaceReporting(t *testing.T) {
	m := NewAtomicHashMap[string, string]()
	defer m.Drop()

	assert.False(t, m.Insert("k", "old"))
	assert.True(t, m.Insert("k", "new"), "replacing an existing key reports true")
	assert.Equal(t, 1, m.Len())

	g, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", g.Get())
	g.Release()
}

func TestMapGetAbsent(t *testing.T) {
	m := NewAtomicHashMap[string, int]()
	defer m.Drop()

	_, ok := m.Get("missing")
	assert.False(t, ok)
	_, ok = m.GetMut("missing")
	assert.False(t, ok)

	// A miss must leave no lock held on the bucket.
	assert.False(t, m.Insert("missing", 1))
	g, ok := m.Get("missing")
	require.True(t, ok)
	assert.Equal(t, 1, g.Get())
	g.Release()
}

func TestMapGetMutVisibleOnRelease(t *testing.T) {
	m := NewAtomicHashMap[string, int]()
	defer m.Drop()
	m.Insert("n", 1)

	g, ok := m.GetMut("n")
	require.True(t, ok)

	read := make(chan int)
	go func() {
		rg, _ := m.Get("n")
		read <- rg.Get()
		rg.Release()
	}()

	select {
	case <-read:
		t.Fatal("reader slipped past an outstanding write guard")
	case <-time.After(20 * time.Millisecond):
	}

	g.Set(42)
	g.Release()
	assert.Equal(t, 42, <-read, "the released write is what the next acquirer sees")
}

func TestMapRemove(t *testing.T) {
	m := NewAtomicHashMap[string, int]()
	defer m.Drop()

	m.Insert("a", 1)
	m.Insert("b", 2)

	v, ok := m.Remove("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, m.Len())

	_, ok = m.Get("a")
	assert.False(t, ok)

	_, ok = m.Remove("a")
	assert.False(t, ok, "removing an absent key reports absence")
	assert.Equal(t, 1, m.Len())
}

func TestMapSingleBucketChain(t *testing.T) {
	// One bucket forces every key into the same chain, covering head,
	// middle and tail unlinks.
	m := NewAtomicHashMapWithBuckets[int, string](1)
	defer m.Drop()

	for i := 0; i < 5; i++ {
		m.Insert(i, fmt.Sprintf("v%d", i))
	}
	require.Equal(t, 5, m.Len())

	for _, key := range []int{2, 0, 4} { // middle, then ends
		v, ok := m.Remove(key)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("v%d", key), v)
	}
	assert.Equal(t, 2, m.Len())

	for _, key := range []int{1, 3} {
		g, ok := m.Get(key)
		require.True(t, ok, "key %d must survive its neighbors' removal", key)
		assert.Equal(t, fmt.Sprintf("v%d", key), g.Get())
		g.Release()
	}
}

func TestMapRange(t *testing.T) {
	m := NewAtomicHashMap[int, int]()
	defer m.Drop()

	for i := 0; i < 10; i++ {
		m.Insert(i, i*i)
	}

	collected := make(map[int]int)
	m.Range(func(k, v int) bool {
		collected[k] = v
		return true
	})
	require.Len(t, collected, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, i*i, collected[i])
	}

	visits := 0
	m.Range(func(int, int) bool {
		visits++
		return false
	})
	assert.Equal(t, 1, visits, "a false return stops the walk")
}

func TestMapRangeReentrant(t *testing.T) {
	m := NewAtomicHashMap[int, int]()
	defer m.Drop()
	m.Insert(1, 1)
	m.Insert(2, 2)

	// fn runs with no bucket lock held, so touching the map from inside
	// Range must not deadlock.
	m.Range(func(k, v int) bool {
		m.Insert(k+100, v)
		return true
	})
	assert.GreaterOrEqual(t, m.Len(), 4)
}

func TestMapCloneDropRefCount(t *testing.T) {
	m := NewAtomicHashMap[string, int]()
	c := m.Clone()
	assert.Equal(t, int64(2), m.RefCount())

	m.Insert("shared", 1)
	g, ok := c.Get("shared")
	require.True(t, ok, "clones address the same buckets")
	assert.Equal(t, 1, g.Get())
	g.Release()

	c.Drop()
	assert.Equal(t, int64(1), m.RefCount())
	m.Drop()
}

func TestMapPoisonedHandlePanics(t *testing.T) {
	m := NewAtomicHashMap[string, int]()
	m.Drop()

	assert.PanicsWithValue(t, "syncbox: Insert on a released AtomicHashMap handle", func() { m.Insert("k", 1) })
	assert.PanicsWithValue(t, "syncbox: Get on a released AtomicHashMap handle", func() { m.Get("k") })
	assert.PanicsWithValue(t, "syncbox: Remove on a released AtomicHashMap handle", func() { m.Remove("k") })
	assert.PanicsWithValue(t, "syncbox: Drop on a released AtomicHashMap handle", func() { m.Drop() })
}

func TestMapConcurrentDistinctKeys(t *testing.T) {
	const (
		goroutines = 8
		perG       = 250
	)

	m := NewAtomicHashMap[int, int]()
	defer m.Drop()

	var wg sync.WaitGroup
	start := make(chan struct{})
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		h := m.Clone()
		go func(base int, local *AtomicHashMap[int, int]) {
			defer wg.Done()
			<-start
			for i := 0; i < perG; i++ {
				local.Insert(base+i, (base+i)*2)
			}
			local.Drop()
		}(g*perG, h)
	}

	close(start)
	wg.Wait()

	require.Equal(t, goroutines*perG, m.Len())
	for k := 0; k < goroutines*perG; k++ {
		g, ok := m.Get(k)
		require.True(t, ok, "key %d missing", k)
		require.Equal(t, k*2, g.Get())
		g.Release()
	}
}

func TestMapConcurrentSameKeyCounter(t *testing.T) {
	const (
		goroutines = 10
		increments = 100
	)

	m := NewAtomicHashMap[string, int]()
	defer m.Drop()
	m.Insert("n", 0)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < goroutines; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < increments; i++ {
				g, ok := m.GetMut("n")
				if !ok {
					t.Error("counter key vanished")
					return
				}
				*g.Value()++
				g.Release()
			}
		}()
	}

	close(start)
	wg.Wait()

	g, ok := m.Get("n")
	require.True(t, ok)
	assert.Equal(t, goroutines*increments, g.Get())
	g.Release()
}
