package sample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleZeroTemperatureIsArgmax(t *testing.T) {
	logits := []float32{0.1, 5.0, 2.0, 5.0} // first max wins tie
	rng := NewRNG(1)
	id, err := Sample(logits, Params{Temperature: 0}, rng)
	require.NoError(t, err)
	require.Equal(t, 1, id)
}

func TestSampleSeedDeterminism(t *testing.T) {
	logits := []float32{1, 2, 3, 0.5, -1}
	params := Params{Temperature: 0.8, TopP: 0.9}

	first, err := Sample(logits, params, NewRNG(0xDEADBEEF))
	require.NoError(t, err)
	second, err := Sample(logits, params, NewRNG(0xDEADBEEF))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSampleTopKNarrowsSupport(t *testing.T) {
	logits := []float32{10, 1, 1, 1, 1}
	params := Params{Temperature: 1, TopK: 1}
	rng := NewRNG(42)
	for i := 0; i < 20; i++ {
		id, err := Sample(logits, params, rng)
		require.NoError(t, err)
		require.Equal(t, 0, id)
	}
}

func TestSampleAllNonFiniteErrors(t *testing.T) {
	logits := make([]float32, 4)
	for i := range logits {
		logits[i] = float32(math.Inf(-1))
	}
	_, err := Sample(logits, Params{Temperature: 1}, NewRNG(1))
	require.Error(t, err)
}

func TestRNGDeterministicSequence(t *testing.T) {
	a := NewRNG(7)
	b := NewRNG(7)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestRNGZeroSeedRemapped(t *testing.T) {
	r := NewRNG(0)
	require.NotEqual(t, uint64(0), r.Next())
}
