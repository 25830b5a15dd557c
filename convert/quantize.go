// quantize.go - Group-Wise Symmetric INT8 Quantization
//
// No zero-point: one float32 scale per group of group_size consecutive
// elements, scale = max(abs(group)) / 127, round-half-to-even on the
// scaled value before clamping to [-127, 127].
package convert

import (
	"math"

	"github.com/PieBru/pico-qwen/quant"
)

// QuantizeRow quantizes one flattened row (length must be divisible by
// groupSize) into a *quant.Tensor shaped as a single row.
func QuantizeRow(name string, values []float32, groupSize int) (*quant.Tensor, error) {
	if len(values)%groupSize != 0 {
		return nil, &NotDivisibleByGroupSize{Name: name, Dim: len(values), GroupSize: groupSize}
	}

	numGroups := len(values) / groupSize
	out := &quant.Tensor{
		Values:    make([]int8, len(values)),
		Scales:    make([]float32, numGroups),
		Shape:     [4]int{1, len(values)},
		NDim:      2,
		GroupSize: groupSize,
	}

	for g := 0; g < numGroups; g++ {
		group := values[g*groupSize : (g+1)*groupSize]
		var maxAbs float32
		for _, v := range group {
			if a := float32(math.Abs(float64(v))); a > maxAbs {
				maxAbs = a
			}
		}

		scale := maxAbs / 127
		out.Scales[g] = scale

		for i, v := range group {
			var q int8
			if scale != 0 {
				q = quantizeValue(v, scale)
			}
			out.Values[g*groupSize+i] = q
		}
	}

	return out, nil
}

// quantizeValue rounds v/scale to the nearest integer, ties to even, and
// clamps to int8's symmetric range.
func quantizeValue(v, scale float32) int8 {
	scaled := math.RoundToEven(float64(v / scale))
	if scaled > 127 {
		scaled = 127
	} else if scaled < -127 {
		scaled = -127
	}
	return int8(scaled)
}

// QuantizeMatrix quantizes a [rows, cols] matrix row-major, where cols
// must be divisible by groupSize. Unlike QuantizeRow this keeps the full
// matrix shape for tensors consumed by quant.MatMulVec directly.
func QuantizeMatrix(name string, values []float32, rows, cols, groupSize int) (*quant.Tensor, error) {
	if cols%groupSize != 0 {
		return nil, &NotDivisibleByGroupSize{Name: name, Dim: cols, GroupSize: groupSize}
	}
	if len(values) != rows*cols {
		return nil, &ShapeMismatch{Name: name, Want: []int{rows, cols}, Got: []int{len(values) / cols, cols}}
	}

	t, err := QuantizeRow(name, values, groupSize)
	if err != nil {
		return nil, err
	}
	t.Shape = [4]int{rows, cols}
	return t, nil
}
