// Package kvcache - Per-Layer Growing KV Cache
//
// One Cache holds the K/V history for every layer of a single Session.
// Each layer buffer grows by one position per decode step, never evicts,
// and is sized up front to max_seq_len so append never reallocates.
// Modeled after the per-layer buffer shape
// x/imagegen/models/qwen3/attention.go's Attention.Forward produces
// before ScaledDotProductAttentionWithSinks, adapted from MLX graph
// tensors to flat float32 slices indexed by stride.
package kvcache

import "fmt"

// LayerCache holds one transformer layer's K and V history, flattened as
// position-major [kv_dim] rows.
type LayerCache struct {
	K, V   []float32
	Stride int // n_kv_heads * head_dim
	Len    int // number of positions written so far
}

func newLayerCache(maxSeqLen, stride int) LayerCache {
	return LayerCache{
		K:      make([]float32, maxSeqLen*stride),
		V:      make([]float32, maxSeqLen*stride),
		Stride: stride,
	}
}

// Append writes k, v (each length Stride) at the next position and
// advances Len. It panics if the cache is already at capacity; callers
// must check Len against max_seq_len before generating further (context
// exhaustion is handled one layer above, in generate).
func (c *LayerCache) Append(k, v []float32) {
	if len(k) != c.Stride || len(v) != c.Stride {
		panic(fmt.Sprintf("kvcache: append length mismatch: got K=%d V=%d, want %d", len(k), len(v), c.Stride))
	}
	base := c.Len * c.Stride
	copy(c.K[base:base+c.Stride], k)
	copy(c.V[base:base+c.Stride], v)
	c.Len++
}

// KAt and VAt return the stored K/V row for position s without copying.
func (c *LayerCache) KAt(s int) []float32 { return c.K[s*c.Stride : (s+1)*c.Stride] }
func (c *LayerCache) VAt(s int) []float32 { return c.V[s*c.Stride : (s+1)*c.Stride] }

// Cache is the full set of per-layer caches for one Session.
type Cache struct {
	Layers []LayerCache
}

// New allocates a cache sized for nLayers layers, each with room for
// maxSeqLen positions of a kv_dim = n_kv_heads*head_dim row.
func New(nLayers, maxSeqLen, kvDim int) *Cache {
	c := &Cache{Layers: make([]LayerCache, nLayers)}
	for i := range c.Layers {
		c.Layers[i] = newLayerCache(maxSeqLen, kvDim)
	}
	return c
}

// Len reports the number of positions written, which is identical across
// every layer since all layers advance together per decode step.
func (c *Cache) Len() int {
	if len(c.Layers) == 0 {
		return 0
	}
	return c.Layers[0].Len
}

// Clear resets every layer back to empty so the cache can be reused for
// an independent prompt without carrying over stale history. It does not
// release the underlying buffers.
func (c *Cache) Clear() {
	for i := range c.Layers {
		c.Layers[i].Len = 0
	}
}
