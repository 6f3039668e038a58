package syncbox

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeakUpgradeWhileAlive(t *testing.T) {
	r := New(42)
	w := r.Downgrade()

	up, ok := w.Upgrade()
	require.True(t, ok)
	assert.Equal(t, int64(2), r.StrongCount())
	assert.True(t, up.PtrEq(r))

	v, ok := TryDowncast[int](up)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	up.Drop()
	w.Drop()
	r.Drop()
}

func TestWeakUpgradeAfterDeath(t *testing.T) {
	r := New("gone")
	w := r.Downgrade()
	r.Drop()

	for i := 0; i < 3; i++ {
		_, ok := w.Upgrade()
		assert.False(t, ok)
	}
	assert.Equal(t, int64(0), w.StrongCount())
	assert.Equal(t, int64(1), w.WeakCount(),
		"after death the phantom is gone; the count is the real weak handles")
	w.Drop()
}

func TestWeakCloneDropCounting(t *testing.T) {
	r := New(1)
	w1 := r.Downgrade()
	w2 := w1.Clone()
	w3 := w2.Clone()
	assert.Equal(t, int64(3), r.WeakCount())
	assert.True(t, w1.PtrEq(w3))

	w3.Drop()
	w2.Drop()
	assert.Equal(t, int64(1), r.WeakCount())
	w1.Drop()
	assert.Equal(t, int64(0), r.WeakCount())
	r.Drop()
}

func TestWeakPoisonedHandlePanics(t *testing.T) {
	r := New(1)
	w := r.Downgrade()
	w.Drop()

	assert.PanicsWithValue(t, "syncbox: Upgrade on a released WeakAnyRef handle", func() { w.Upgrade() })
	assert.PanicsWithValue(t, "syncbox: Clone on a released WeakAnyRef handle", func() { w.Clone() })
	assert.PanicsWithValue(t, "syncbox: Drop on a released WeakAnyRef handle", func() { w.Drop() })
	r.Drop()
}

// TestWeakUpgradeVsDropRace races upgrades against the final strong drop.
// Every successful upgrade must observe the intact payload, and the
// destructor must run exactly once no matter which side wins.
func TestWeakUpgradeVsDropRace(t *testing.T) {
	const (
		iterations = 300
		upgraders  = 4
	)

	for i := 0; i < iterations; i++ {
		var destroyed atomic.Int64
		r := NewWithDrop(42, func(int) { destroyed.Add(1) })

		weaks := make([]*WeakAnyRef, upgraders)
		for j := range weaks {
			weaks[j] = r.Downgrade()
		}

		start := make(chan struct{})
		var wg sync.WaitGroup

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			r.Drop()
		}()

		for j := 0; j < upgraders; j++ {
			wg.Add(1)
			go func(w *WeakAnyRef) {
				defer wg.Done()
				<-start
				if up, ok := w.Upgrade(); ok {
					v, vok := TryDowncast[int](up)
					assert.True(t, vok)
					assert.Equal(t, 42, v)
					up.Drop()
				}
				w.Drop()
			}(weaks[j])
		}

		close(start)
		wg.Wait()

		assert.Equal(t, int64(1), destroyed.Load())
	}
}
