// session.go - Per-Generation Scratch State
//
// Session pairs a loaded Weights with its own KV cache and a set of
// reusable activation buffers so Step never allocates on the hot path,
// mirroring x/imagegen/models/qwen3/encoder.go's pattern of sizing all
// intermediate buffers once from the model's config before the first
// forward call.
package model

import "github.com/PieBru/pico-qwen/kvcache"

// Session is one independent generation context: its own KV cache and
// scratch buffers, sharing the read-only Weights with any sibling
// sessions over the same loaded artifact.
type Session struct {
	W     *Weights
	Cache *kvcache.Cache

	x        []float32
	normed   []float32
	q        []float32
	k        []float32
	v        []float32
	attnOut  []float32 // concatenated per-head attention output, input to WO
	attnProj []float32 // WO(attnOut), added into the residual stream
	ffnIn    []float32
	gate     []float32
	up       []float32
	ffnOut   []float32
	logits   []float32
	attnTmp  []float32
}

// NewSession allocates a Session with a KV cache sized for maxSeqLen
// positions and scratch buffers sized from w.Header.
func NewSession(w *Weights, maxSeqLen int) *Session {
	h := w.Header
	dim := int(h.Dim)
	hidden := int(h.HiddenDim)
	headDim := int(h.HeadDim())
	kvDim := int(h.NKVHeads) * headDim

	return &Session{
		W:        w,
		Cache:    kvcache.New(int(h.NLayers), maxSeqLen, kvDim),
		x:        make([]float32, dim),
		normed:   make([]float32, dim),
		q:        make([]float32, dim),
		k:        make([]float32, kvDim),
		v:        make([]float32, kvDim),
		attnOut:  make([]float32, dim),
		attnProj: make([]float32, dim),
		ffnIn:    make([]float32, dim),
		gate:     make([]float32, hidden),
		up:       make([]float32, hidden),
		ffnOut:   make([]float32, dim),
		logits:   make([]float32, int(h.VocabSize)),
		attnTmp:  make([]float32, maxSeqLen),
	}
}

// Len reports how many positions have been written into the cache.
func (s *Session) Len() int { return s.Cache.Len() }

// Reset clears the KV cache so the session can start a new, independent
// prompt from position 0 without its scratch buffers being reallocated.
func (s *Session) Reset() { s.Cache.Clear() }
