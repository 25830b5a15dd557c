// attention.go - Scaled Dot-Product Attention with GQA
//
// Generalizes Attention.Forward/repeatKV from attention.go: instead of
// expanding K/V heads into a tiled MLX tensor, the kv-head each query
// head reads is computed directly (kv_h = h / (n_heads/n_kv_heads)) and
// indexed straight out of the growing cache, so no K/V duplication ever
// happens in memory.
package kvcache

import "math"

// Attend computes one query head's causal scaled dot-product attention
// output against the cache's history through position t (inclusive),
// for the kv head that GQA maps this query head onto.
//
// q has length headDim. out must have length headDim; it is zeroed and
// then overwritten, never allocated, so callers can pass a per-head slot
// of a reused scratch buffer across heads, layers, and tokens. scratch is
// a caller-provided buffer of length at least t+1, reused across heads to avoid
// per-call allocation.
func Attend(cache *LayerCache, q []float32, head, nHeads, nKVHeads, headDim, t int, scratch []float32, out []float32) {
	kvHead := head / (nHeads / nKVHeads)
	scale := float32(1 / math.Sqrt(float64(headDim)))

	scores := scratch[:t+1]
	for s := 0; s <= t; s++ {
		k := cache.KAt(s)[kvHead*headDim : (kvHead+1)*headDim]
		scores[s] = dot(q, k) * scale
	}
	softmaxInPlace(scores)

	for d := range out {
		out[d] = 0
	}
	for s := 0; s <= t; s++ {
		v := cache.VAt(s)[kvHead*headDim : (kvHead+1)*headDim]
		w := scores[s]
		for d := range out {
			out[d] += w * v[d]
		}
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// softmaxInPlace computes a numerically stable softmax over scores.
func softmaxInPlace(scores []float32) {
	max := scores[0]
	for _, v := range scores[1:] {
		if v > max {
			max = v
		}
	}

	var sum float32
	for i, v := range scores {
		e := float32(math.Exp(float64(v - max)))
		scores[i] = e
		sum += e
	}

	inv := 1 / sum
	for i := range scores {
		scores[i] *= inv
	}
}
