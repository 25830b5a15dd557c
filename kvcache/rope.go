// rope.go - Rotary Position Embedding
//
// Pair-wise rotation over head_dim/2 pairs, generalized from the
// batched MLX formulation in attention.go's applyRoPEQwen3 down to a
// single head-vector operating directly on a float32 slice.
package kvcache

import "math"

// ApplyRoPE rotates x (length head_dim, modified in place) for position
// t using the standard interpretation: pair i with i+head_dim/2, angle
// t * theta^(-2i/head_dim).
func ApplyRoPE(x []float32, t int, theta float32) {
	headDim := len(x)
	half := headDim / 2
	for j := 0; j < half; j++ {
		freq := float32(1) / powf32(theta, float32(2*j)/float32(headDim))
		angle := float64(t) * float64(freq)
		sin, cos := math.Sincos(angle)
		a, b := x[j], x[j+half]
		x[j] = a*float32(cos) - b*float32(sin)
		x[j+half] = a*float32(sin) + b*float32(cos)
	}
}

func powf32(base, exp float32) float32 {
	return float32(math.Pow(float64(base), float64(exp)))
}
