// Package artifact - Byte Cursor
//
// A little-endian scalar reader over a mapped region. ReadBytes and
// ReadI8Slice return views into the underlying mapping slice; ReadF32Slice
// returns a freshly allocated copy.
package artifact

import (
	"encoding/binary"
	"math"
)

func float32Bits(f float32) uint32   { return math.Float32bits(f) }
func float32FromBits(b uint32) float32 { return math.Float32frombits(b) }

// Cursor reads little-endian scalars sequentially from a borrowed byte slice.
type Cursor struct {
	data []byte
	pos  int64
}

// NewCursor returns a Cursor over data starting at byte 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Pos returns the current read offset.
func (c *Cursor) Pos() int64 { return c.pos }

// Seek repositions the cursor to an absolute offset.
func (c *Cursor) Seek(offset int64) {
	c.pos = offset
}

// ReadU32 reads one little-endian uint32 and advances the cursor.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadF32 reads one little-endian float32 and advances the cursor.
func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	if err != nil {
		return 0, err
	}
	return float32FromBits(v), nil
}

// ReadBytes returns the next n bytes as a view into the underlying mapping,
// without copying, and advances the cursor.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos < 0 || c.pos+int64(n) > int64(len(c.data)) {
		return nil, &IoError{Op: "read", Offset: c.pos, Err: errShortRead}
	}
	b := c.data[c.pos : c.pos+int64(n)]
	c.pos += int64(n)
	return b, nil
}

// ReadI8Slice returns the next n signed bytes as a view, without copying.
func (c *Cursor) ReadI8Slice(n int) ([]int8, error) {
	b, err := c.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return int8View(b), nil
}

// ReadF32Slice returns the next n little-endian float32 values as a freshly
// allocated slice. It is used at load time for both the norm vectors and
// the quantized tensors' group scales, so neither aliases the mapping.
func (c *Cursor) ReadF32Slice(n int) ([]float32, error) {
	b, err := c.ReadBytes(n * 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = float32FromBits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out, nil
}
