// norm.go - RMSNorm
package model

import "math"

// RMSNorm overwrites out with RMSNorm(x) * weight, using eps=1e-6, the
// Qwen3 family's fixed norm epsilon.
const normEps = 1e-6

func RMSNorm(out, x, weight []float32) {
	var sumSq float64
	for _, v := range x {
		sumSq += float64(v) * float64(v)
	}
	meanSq := sumSq/float64(len(x)) + normEps
	inv := float32(1 / math.Sqrt(meanSq))
	for i, v := range x {
		out[i] = v * inv * weight[i]
	}
}
