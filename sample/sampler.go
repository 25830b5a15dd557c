// Package sample - Logit Sampler
//
// Temperature, top-k, top-p (nucleus), a deterministic xorshift64* PRNG,
// and argmax at T=0. Sampling is the only randomized step in the whole
// engine; identical logits, Params, and seed always produce the
// identical token.
package sample

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Params bundles one sampling call's configuration.
type Params struct {
	Temperature float32
	TopK        int     // 0 disables
	TopP        float32 // >=1 disables
}

// Error is returned when every probability has become non-finite, the
// only error this package can produce.
type Error struct{ Reason string }

func (e *Error) Error() string { return "sample: " + e.Reason }

// RNG is an explicit xorshift64* generator, advanced deterministically so
// that identical seeds produce identical draws across platforms and Go
// versions; math/rand's algorithm is not part of the Go compatibility
// promise across stdlib versions.
type RNG struct{ state uint64 }

// NewRNG seeds the generator. A zero seed is remapped to a fixed nonzero
// constant since xorshift has a fixed point at all-zero state.
func NewRNG(seed uint64) *RNG {
	if seed == 0 {
		seed = 0x9E3779B97F4A7C15
	}
	return &RNG{state: seed}
}

// Next returns the next 64-bit value and advances the state.
func (r *RNG) Next() uint64 {
	x := r.state
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	r.state = x
	return x * 2685821657736338717
}

// Float64 draws u in [0,1).
func (r *RNG) Float64() float64 {
	// 53 significant bits, the same width float64's mantissa can hold exactly.
	return float64(r.Next()>>11) / (1 << 53)
}

// Sample draws the next token id from logits according to p. logits is
// read but not mutated; Sample allocates scratch space proportional to
// len(logits) (the sampler is not the hot path matmul_vec is).
func Sample(logits []float32, p Params, rng *RNG) (int, error) {
	if p.Temperature == 0 {
		return argmax(logits), nil
	}

	probs := make([]float64, len(logits))
	invT := 1 / float64(p.Temperature)
	maxLogit := float64(logits[argmax(logits)])
	var sum float64
	for i, l := range logits {
		z := (float64(l) - maxLogit) * invT
		e := math.Exp(z)
		probs[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, &Error{Reason: "all probabilities non-finite"}
	}
	for i := range probs {
		probs[i] /= sum
	}

	if p.TopK > 0 && p.TopK < len(probs) {
		applyTopK(probs, p.TopK)
	}
	if p.TopP > 0 && p.TopP < 1 {
		applyTopP(probs, float64(p.TopP))
	}

	renormalize(probs)

	u := rng.Float64()
	var cum float64
	for i, pr := range probs {
		cum += pr
		if cum > u {
			return i, nil
		}
	}
	return len(probs) - 1, nil
}

func argmax(logits []float32) int {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return best
}

// applyTopK zeroes every probability outside the k largest.
func applyTopK(probs []float64, k int) {
	idx := argsortDescending(probs)
	for _, i := range idx[k:] {
		probs[i] = 0
	}
}

// applyTopP keeps the smallest prefix (by descending probability) whose
// cumulative mass reaches p, zeroing the rest.
func applyTopP(probs []float64, p float64) {
	idx := argsortDescending(probs)
	var cum float64
	cutoff := len(idx)
	for i, ix := range idx {
		cum += probs[ix]
		if cum >= p {
			cutoff = i + 1
			break
		}
	}
	for _, ix := range idx[cutoff:] {
		probs[ix] = 0
	}
}

func argsortDescending(probs []float64) []int {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] > probs[idx[b]] })
	return idx
}

func renormalize(probs []float64) {
	sum := floats.Sum(probs)
	if sum <= 0 {
		return
	}
	floats.Scale(1/sum, probs)
}
