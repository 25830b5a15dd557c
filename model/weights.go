// Package model - Transformer Weights and Forward Pass
//
// Weights holds the read-only contents of an artifact.Mapping: one
// *quant.Tensor per projection and one float32 slice per norm vector,
// laid out in the fixed order the exporter writes them in. Quantized
// values alias the mapped file; norm vectors and group scales are copied
// out of it at load time.
package model

import (
	"bytes"

	"github.com/PieBru/pico-qwen/artifact"
	"github.com/PieBru/pico-qwen/quant"
)

// Layer holds one transformer block's weights.
type Layer struct {
	AttnNorm, FFNNorm []float32
	QNorm, KNorm      []float32 // length head_dim

	WQ, WK, WV, WO *quant.Tensor
	Gate, Down, Up *quant.Tensor
}

// Weights is the full set of views into a loaded artifact.
type Weights struct {
	Header     artifact.Header
	Layers     []Layer
	FinalNorm  []float32
	Embedding  *quant.Tensor
	Classifier *quant.Tensor // nil when Header.SharedClassifier is set
}

// Load builds a Weights by walking mapping.Bytes in the artifact's fixed
// on-disk order: header, then the norm section (grouped by kind across
// all layers), then the quantized section (grouped by layer).
func Load(mapping *artifact.Mapping) (*Weights, error) {
	h, err := artifact.ReadHeader(bytes.NewReader(mapping.Bytes[:artifact.HeaderSize]))
	if err != nil {
		return nil, err
	}

	cur := artifact.NewCursor(mapping.Bytes)
	cur.Seek(artifact.HeaderSize)

	dim := int(h.Dim)
	headDim := int(h.HeadDim())
	nLayers := int(h.NLayers)

	layers := make([]Layer, nLayers)

	readVec := func(n int) ([]float32, error) { return cur.ReadF32Slice(n) }

	for i := 0; i < nLayers; i++ {
		v, err := readVec(dim)
		if err != nil {
			return nil, err
		}
		layers[i].AttnNorm = v
	}
	for i := 0; i < nLayers; i++ {
		v, err := readVec(dim)
		if err != nil {
			return nil, err
		}
		layers[i].FFNNorm = v
	}
	for i := 0; i < nLayers; i++ {
		v, err := readVec(headDim)
		if err != nil {
			return nil, err
		}
		layers[i].QNorm = v
	}
	for i := 0; i < nLayers; i++ {
		v, err := readVec(headDim)
		if err != nil {
			return nil, err
		}
		layers[i].KNorm = v
	}
	finalNorm, err := readVec(dim)
	if err != nil {
		return nil, err
	}

	kvDim := int(h.NKVHeads) * headDim
	hidden := int(h.HiddenDim)

	readMatrix := func(rows, cols int) (*quant.Tensor, error) {
		return readQuantTensor(cur, rows, cols, int(h.GroupSize))
	}

	for i := 0; i < nLayers; i++ {
		var err error
		if layers[i].WQ, err = readMatrix(dim, dim); err != nil {
			return nil, err
		}
		if layers[i].WK, err = readMatrix(kvDim, dim); err != nil {
			return nil, err
		}
		if layers[i].WV, err = readMatrix(kvDim, dim); err != nil {
			return nil, err
		}
		if layers[i].WO, err = readMatrix(dim, dim); err != nil {
			return nil, err
		}
		if layers[i].Gate, err = readMatrix(hidden, dim); err != nil {
			return nil, err
		}
		if layers[i].Down, err = readMatrix(dim, hidden); err != nil {
			return nil, err
		}
		if layers[i].Up, err = readMatrix(hidden, dim); err != nil {
			return nil, err
		}
	}

	embedding, err := readMatrix(int(h.VocabSize), dim)
	if err != nil {
		return nil, err
	}

	var classifier *quant.Tensor
	if !h.SharedClassifier {
		classifier, err = readMatrix(int(h.VocabSize), dim)
		if err != nil {
			return nil, err
		}
	}

	return &Weights{
		Header:     h,
		Layers:     layers,
		FinalNorm:  finalNorm,
		Embedding:  embedding,
		Classifier: classifier,
	}, nil
}

func readQuantTensor(cur *artifact.Cursor, rows, cols, groupSize int) (*quant.Tensor, error) {
	n := rows * cols
	values, err := cur.ReadI8Slice(n)
	if err != nil {
		return nil, err
	}
	numGroups := n / groupSize
	scales, err := cur.ReadF32Slice(numGroups)
	if err != nil {
		return nil, err
	}
	t := &quant.Tensor{
		Values:    values,
		Scales:    scales,
		Shape:     [4]int{rows, cols},
		NDim:      2,
		GroupSize: groupSize,
	}
	return t, t.Validate()
}

// EmbedRow dequantizes row `id` of the embedding table into out (length
// dim).
func (w *Weights) EmbedRow(id int, out []float32) {
	quant.DequantRow(w.Embedding, id, out)
}
