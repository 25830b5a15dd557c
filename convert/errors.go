// errors.go - Typed Export Errors
package convert

import "fmt"

// MissingTensor reports a tensor name the Qwen3 architecture requires
// that no safetensors shard defines.
type MissingTensor struct {
	Name string
}

func (e *MissingTensor) Error() string {
	return fmt.Sprintf("convert: missing required tensor %q", e.Name)
}

// ShapeMismatch reports a tensor whose shape disagrees with what
// config.json's dimensions imply.
type ShapeMismatch struct {
	Name string
	Want []int
	Got  []int
}

func (e *ShapeMismatch) Error() string {
	return fmt.Sprintf("convert: tensor %q has shape %v, want %v", e.Name, e.Got, e.Want)
}

// UnsupportedDType reports a safetensors dtype this exporter cannot
// upcast to float32.
type UnsupportedDType struct {
	Name  string
	DType string
}

func (e *UnsupportedDType) Error() string {
	return fmt.Sprintf("convert: tensor %q has unsupported dtype %q", e.Name, e.DType)
}

// NotDivisibleByGroupSize reports a tensor whose innermost dimension
// isn't a multiple of the chosen quantization group size.
type NotDivisibleByGroupSize struct {
	Name      string
	Dim       int
	GroupSize int
}

func (e *NotDivisibleByGroupSize) Error() string {
	return fmt.Sprintf("convert: tensor %q inner dimension %d is not divisible by group size %d", e.Name, e.Dim, e.GroupSize)
}

// UnsupportedArchitecture reports a config.json architecture this
// exporter does not implement.
type UnsupportedArchitecture struct {
	Architecture string
}

func (e *UnsupportedArchitecture) Error() string {
	return fmt.Sprintf("convert: unsupported architecture %q, only Qwen3ForCausalLM is implemented", e.Architecture)
}
