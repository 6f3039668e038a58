package typetag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct{ X, Y int }

type alias = point

type renamed point

func TestOfIdentity(t *testing.T) {
	tests := []struct {
		name string
		a, b Tag
		same bool
	}{
		{"int vs int", Of[int](), Of[int](), true},
		{"int vs int32", Of[int](), Of[int32](), false},
		{"int vs uint", Of[int](), Of[uint](), false},
		{"string vs string", Of[string](), Of[string](), true},
		{"struct vs same struct", Of[point](), Of[point](), true},
		{"struct vs alias", Of[point](), Of[alias](), true},
		{"struct vs defined type", Of[point](), Of[renamed](), false},
		{"value vs pointer", Of[point](), Of[*point](), false},
		{"slice vs array", Of[[]byte](), Of[[4]byte](), false},
		{"any vs int", Of[any](), Of[int](), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, tt.a.Matches(tt.b))
			assert.Equal(t, tt.same, tt.b.Matches(tt.a))
		})
	}
}

func TestOfValueMatchesOf(t *testing.T) {
	require.True(t, OfValue(42).Matches(Of[int]()))
	require.True(t, OfValue(point{1, 2}).Matches(Of[point]()))
	require.True(t, OfValue(&point{}).Matches(Of[*point]()))
	require.False(t, OfValue(int32(42)).Matches(Of[int]()))
}

func TestZeroTag(t *testing.T) {
	var zero Tag
	require.True(t, zero.IsZero())
	assert.False(t, zero.Matches(Of[int]()))
	assert.True(t, zero.Matches(Tag{}))

	// A nil interface has no dynamic type.
	assert.True(t, OfValue(nil).IsZero())
	assert.Equal(t, "<none>", OfValue(nil).Name())
}

func TestName(t *testing.T) {
	assert.Equal(t, "int", Of[int]().Name())
	assert.Contains(t, Of[point]().Name(), "point")
	assert.Contains(t, Of[*point]().Name(), "*")
	assert.False(t, Of[int]().IsZero())
}
