package kvcache

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheAppendAdvancesLen(t *testing.T) {
	c := New(2, 8, 4)
	c.Layers[0].Append([]float32{1, 2, 3, 4}, []float32{5, 6, 7, 8})
	require.Equal(t, 1, c.Layers[0].Len)
	require.Equal(t, []float32{1, 2, 3, 4}, c.Layers[0].KAt(0))
	require.Equal(t, []float32{5, 6, 7, 8}, c.Layers[0].VAt(0))
}

func TestCacheAppendRejectsWrongLength(t *testing.T) {
	c := New(1, 8, 4)
	require.Panics(t, func() {
		c.Layers[0].Append([]float32{1, 2}, []float32{1, 2, 3, 4})
	})
}

func TestCacheLenBound(t *testing.T) {
	c := New(2, 8, 4)
	for i := 0; i < 3; i++ {
		c.Layers[0].Append(make([]float32, 4), make([]float32, 4))
		c.Layers[1].Append(make([]float32, 4), make([]float32, 4))
	}
	require.Equal(t, 3, c.Len())
}

func TestApplyRoPEIdentityAtPositionZero(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	orig := append([]float32{}, x...)
	ApplyRoPE(x, 0, 10000)
	require.InDeltaSlice(t, orig, x, 1e-5)
}

func TestApplyRoPEReverseRotationIsIdentity(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	orig := append([]float32{}, x...)

	ApplyRoPE(x, 5, 10000)
	reverseRoPE(x, 5, 10000)

	for i := range x {
		require.InDelta(t, float64(orig[i]), float64(x[i]), 1e-4)
	}
}

// reverseRoPE rotates by -theta, used only to test RoPE's rotate-then-
// unrotate identity property.
func reverseRoPE(x []float32, t int, theta float32) {
	headDim := len(x)
	half := headDim / 2
	for j := 0; j < half; j++ {
		freq := float32(1) / powf32(theta, float32(2*j)/float32(headDim))
		angle := -float64(t) * float64(freq)
		sin, cos := math.Sincos(angle)
		a, b := x[j], x[j+half]
		x[j] = a*float32(cos) - b*float32(sin)
		x[j+half] = a*float32(sin) + b*float32(cos)
	}
}

func TestAttendSingleStepReturnsValueDirectly(t *testing.T) {
	c := New(1, 8, 2)
	c.Layers[0].Append([]float32{1, 1}, []float32{3, 4})

	q := []float32{1, 1}
	scratch := make([]float32, 8)
	out := make([]float32, 2)
	Attend(&c.Layers[0], q, 0, 1, 1, 2, 0, scratch, out)
	require.InDeltaSlice(t, []float32{3, 4}, out, 1e-5)
}

func TestAttendGQAMapsHeadToKVHead(t *testing.T) {
	c := New(1, 8, 2) // one kv head, head_dim=2
	c.Layers[0].Append([]float32{0, 0}, []float32{9, 9})

	scratch := make([]float32, 8)
	// 4 query heads sharing 1 kv head
	out0 := make([]float32, 2)
	out3 := make([]float32, 2)
	Attend(&c.Layers[0], []float32{1, 0}, 0, 4, 1, 2, 0, scratch, out0)
	Attend(&c.Layers[0], []float32{1, 0}, 3, 4, 1, 2, 0, scratch, out3)
	require.Equal(t, out0, out3)
}

func TestCacheClearResetsLen(t *testing.T) {
	c := New(2, 8, 4)
	c.Layers[0].Append(make([]float32, 4), make([]float32, 4))
	c.Layers[1].Append(make([]float32, 4), make([]float32, 4))
	require.Equal(t, 1, c.Len())
	c.Clear()
	require.Equal(t, 0, c.Len())
	require.Equal(t, 0, c.Layers[0].Len)
	require.Equal(t, 0, c.Layers[1].Len)
}
