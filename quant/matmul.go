// Package quant - Fused Dequant/MatMul Hot Path
//
// MatMulVec computes out = W . x for a row-major [M, K] quantized matrix W
// and a dense float activation vector x, one row at a time: each group of
// GroupSize weights is summed against the matching slice of x in f32, then
// multiplied by that group's scale exactly once and added to the row
// total. Because x is a float activation (not itself quantized), the
// int8*f32 product cannot be accumulated as a true integer; each group's
// raw dot product is computed before its scale is applied, never
// interleaved with another group's terms. No allocation, no panic on
// valid input.
package quant

// kernel is the per-row fused dequant/matmul implementation. It is the
// scalar reference kernel; there is no vectorized specialization in this
// build, so the indirection exists only so a future one could replace it
// without touching MatMulVec.
var kernel = matmulRowScalar

// MatMulVec computes out = w . x, where w is [M, K] row-major, x has
// length K, and out has length M. Callers must size out and x correctly;
// this is the hot path and does no bounds padding.
func MatMulVec(w *Tensor, x []float32, out []float32) {
	k := w.Cols()
	for m := range out {
		row := w.Values[m*k : (m+1)*k]
		scaleBase := (m * k) / w.GroupSize
		out[m] = kernel(row, w.Scales[scaleBase:], x, w.GroupSize)
	}
}

// matmulRowScalar computes one row's dot product by summing each group's
// int8-weight * float-activation products in f32, then scaling once per
// group and adding to the row total.
func matmulRowScalar(row []int8, scales []float32, x []float32, groupSize int) float32 {
	var total float32
	k := len(row)
	for start, g := 0, 0; start < k; start, g = start+groupSize, g+1 {
		end := min(start+groupSize, k)
		var groupSum float32
		for i := start; i < end; i++ {
			groupSum += float32(row[i]) * x[i]
		}
		total += groupSum * scales[g]
	}
	return total
}
