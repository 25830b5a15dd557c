package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeTensor(t *testing.T, values []int8, scales []float32, groupSize int) *Tensor {
	t.Helper()
	qt := &Tensor{Values: values, Scales: scales, Shape: [4]int{1, len(values)}, NDim: 2, GroupSize: groupSize}
	require.NoError(t, qt.Validate())
	return qt
}

func TestDequantScalesByGroupScale(t *testing.T) {
	// dequant(i) == values[i] * scales[i/groupSize]
	values := []int8{127, -64, 0, 32}
	scales := []float32{0.5}
	qt := makeTensor(t, values, scales, 4)

	for i, v := range values {
		got := qt.Dequant(i)
		want := float32(v) * 0.5
		require.InDelta(t, want, got, 1e-6)
	}
}

func TestMatMulVecSingleGroup(t *testing.T) {
	// w is [2,4], group size 4 (one group per row).
	values := []int8{1, 2, 3, 4, -1, -2, -3, -4}
	scales := []float32{1.0, 2.0}
	w := &Tensor{Values: values, Scales: scales, Shape: [4]int{2, 4}, NDim: 2, GroupSize: 4}
	require.NoError(t, w.Validate())

	x := []float32{1, 1, 1, 1}
	out := make([]float32, 2)
	MatMulVec(w, x, out)

	require.InDelta(t, float32(10), out[0], 1e-6)  // (1+2+3+4)*1.0
	require.InDelta(t, float32(-20), out[1], 1e-6) // (-1-2-3-4)*2.0
}

func TestMatMulVecMultiGroup(t *testing.T) {
	// one row, two groups of 2.
	values := []int8{10, 20, 30, 40}
	scales := []float32{1.0, 0.5}
	w := &Tensor{Values: values, Scales: scales, Shape: [4]int{1, 4}, NDim: 2, GroupSize: 2}
	require.NoError(t, w.Validate())

	x := []float32{1, 1, 1, 1}
	out := make([]float32, 1)
	MatMulVec(w, x, out)

	want := float32(10+20)*1.0 + float32(30+40)*0.5
	require.InDelta(t, want, out[0], 1e-6)
}

func TestDequantRowGroupStraddling(t *testing.T) {
	// cols=3, groupSize=2: row 1 starts at element 3, which falls mid-group.
	values := []int8{1, 2, 3, 4, 5, 6}
	scales := []float32{1, 2, 3} // groups: [1,2] [3,4] [5,6]
	tensor := &Tensor{Values: values, Scales: scales, Shape: [4]int{2, 3}, NDim: 2, GroupSize: 2}
	require.NoError(t, tensor.Validate())

	out := make([]float32, 3)
	DequantRow(tensor, 1, out)
	require.Equal(t, []float32{4 * 2, 5 * 3, 6 * 3}, out)
}

func TestValidateRejectsNonDivisible(t *testing.T) {
	tensor := &Tensor{Values: make([]int8, 5), Scales: make([]float32, 1), GroupSize: 4}
	require.Error(t, tensor.Validate())
}

func TestValidateRejectsScaleCountMismatch(t *testing.T) {
	tensor := &Tensor{Values: make([]int8, 8), Scales: make([]float32, 1), GroupSize: 4}
	require.Error(t, tensor.Validate())
}

func TestDequantNaN(t *testing.T) {
	tensor := &Tensor{Values: []int8{1}, Scales: []float32{float32(math.NaN())}, GroupSize: 1}
	got := tensor.Dequant(0)
	require.True(t, math.IsNaN(float64(got)))
}
