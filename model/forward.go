// forward.go - One Decode Step
//
// Step runs a single token through every layer: pre-norm self-attention
// with per-head Q/K-norm, RoPE, and GQA against the growing KV cache,
// then a SwiGLU MLP, each wrapped in a residual add. Composition follows
// x/imagegen/models/qwen3/block.go's Block.Forward
// (x = x + Attention(InputNorm(x)); x = x + MLP(PostAttnNorm(x))),
// translated from MLX graph tensors to direct float32-slice arithmetic
// over Session's preallocated scratch buffers.
package model

import (
	"math"

	"github.com/PieBru/pico-qwen/kvcache"
	"github.com/PieBru/pico-qwen/quant"
)

// Step embeds tokenID, runs the full stack of layers at position pos
// (the index this token occupies in the sequence, 0-based), appends this
// step's K/V into the cache, and returns the unnormalized logits over
// the vocabulary. The returned slice is a Session-owned scratch buffer,
// valid only until the next Step call.
func (s *Session) Step(tokenID, pos int) []float32 {
	w := s.W
	h := w.Header
	nHeads := int(h.NHeads)
	nKVHeads := int(h.NKVHeads)
	headDim := int(h.HeadDim())

	w.EmbedRow(tokenID, s.x)

	for l := range w.Layers {
		layer := &w.Layers[l]

		RMSNorm(s.normed, s.x, layer.AttnNorm)
		s.selfAttention(&s.Cache.Layers[l], layer, pos, nHeads, nKVHeads, headDim)
		for i := range s.x {
			s.x[i] += s.attnProj[i]
		}

		RMSNorm(s.ffnIn, s.x, layer.FFNNorm)
		s.swiglu(layer)
		for i := range s.x {
			s.x[i] += s.ffnOut[i]
		}
	}

	RMSNorm(s.normed, s.x, w.FinalNorm)

	classifier := w.Classifier
	if classifier == nil {
		classifier = w.Embedding
	}
	quant.MatMulVec(classifier, s.normed, s.logits)

	return s.logits
}

func (s *Session) selfAttention(cache *kvcache.LayerCache, layer *Layer, pos, nHeads, nKVHeads, headDim int) {
	theta := s.W.Header.RopeTheta

	quant.MatMulVec(layer.WQ, s.normed, s.q)
	quant.MatMulVec(layer.WK, s.normed, s.k)
	quant.MatMulVec(layer.WV, s.normed, s.v)

	for hh := 0; hh < nHeads; hh++ {
		head := s.q[hh*headDim : (hh+1)*headDim]
		RMSNorm(head, head, layer.QNorm)
		kvcache.ApplyRoPE(head, pos, theta)
	}
	for hh := 0; hh < nKVHeads; hh++ {
		head := s.k[hh*headDim : (hh+1)*headDim]
		RMSNorm(head, head, layer.KNorm)
		kvcache.ApplyRoPE(head, pos, theta)
	}

	cache.Append(s.k, s.v)

	scratch := s.attnTmp[:pos+1]
	for hh := 0; hh < nHeads; hh++ {
		q := s.q[hh*headDim : (hh+1)*headDim]
		out := s.attnOut[hh*headDim : (hh+1)*headDim]
		kvcache.Attend(cache, q, hh, nHeads, nKVHeads, headDim, pos, scratch, out)
	}

	quant.MatMulVec(layer.WO, s.attnOut, s.attnProj)
}

func (s *Session) swiglu(layer *Layer) {
	quant.MatMulVec(layer.Gate, s.ffnIn, s.gate)
	quant.MatMulVec(layer.Up, s.ffnIn, s.up)
	for i := range s.gate {
		s.gate[i] = silu(s.gate[i]) * s.up[i]
	}
	quant.MatMulVec(layer.Down, s.gate, s.ffnOut)
}

func silu(x float32) float32 {
	return x / (1 + float32(math.Exp(float64(-x))))
}
