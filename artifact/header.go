// Package artifact - Artifact Header
//
// Reads and writes the fixed 256-byte artifact header and validates the
// model configuration invariants it carries.
package artifact

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic identifies the artifact format: "QWEN" read little-endian.
	Magic uint32 = 0x5157454E
	// Version is the only artifact format version this engine accepts.
	Version uint32 = 1

	// HeaderSize is the fixed size of the header, including reserved padding.
	HeaderSize = 256

	flagSharedClassifier = 1 << 0
)

// Header is the model configuration plus the on-disk flags byte. It is
// immutable once loaded.
type Header struct {
	VocabSize        uint32
	Dim              uint32
	HiddenDim        uint32
	NLayers          uint32
	NHeads           uint32
	NKVHeads         uint32
	MaxSeqLen        uint32
	RopeTheta        float32
	GroupSize        uint32
	SharedClassifier bool
}

// HeadDim is the derived per-head width dim/n_heads.
func (h Header) HeadDim() uint32 {
	if h.NHeads == 0 {
		return 0
	}
	return h.Dim / h.NHeads
}

// Validate checks every invariant a model configuration must satisfy.
func (h Header) Validate() error {
	switch {
	case h.VocabSize == 0 || h.VocabSize > 1_000_000:
		return fmt.Errorf("vocab_size %d out of range", h.VocabSize)
	case h.Dim == 0 || h.Dim > 16384:
		return fmt.Errorf("dim %d out of range", h.Dim)
	case h.HiddenDim == 0 || h.HiddenDim > 65536:
		return fmt.Errorf("hidden_dim %d out of range", h.HiddenDim)
	case h.NLayers == 0 || h.NLayers > 100:
		return fmt.Errorf("n_layers %d out of range", h.NLayers)
	case h.NHeads == 0 || h.NHeads > 128:
		return fmt.Errorf("n_heads %d out of range", h.NHeads)
	case h.NKVHeads == 0:
		return fmt.Errorf("n_kv_heads must be > 0")
	case h.NHeads%h.NKVHeads != 0:
		return fmt.Errorf("n_heads %d not divisible by n_kv_heads %d", h.NHeads, h.NKVHeads)
	case h.MaxSeqLen == 0 || h.MaxSeqLen > 65536:
		return fmt.Errorf("max_seq_len %d out of range", h.MaxSeqLen)
	case h.Dim%h.NHeads != 0:
		return fmt.Errorf("dim %d not divisible by n_heads %d", h.Dim, h.NHeads)
	case h.HeadDim()%2 != 0:
		return fmt.Errorf("head_dim %d must be even", h.HeadDim())
	case h.GroupSize < 16 || h.GroupSize > 256 || h.GroupSize&(h.GroupSize-1) != 0:
		return fmt.Errorf("group_size %d must be a power of two in [16,256]", h.GroupSize)
	}
	return nil
}

// ReadHeader reads and validates the 256-byte header from r, rejecting
// unknown magic, unknown version, any nonzero reserved byte, or an
// invariant violation.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, &IoError{Op: "read header", Offset: 0, Err: err}
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != Magic {
		return Header{}, &FormatError{Offset: 0, Reason: fmt.Sprintf("bad magic 0x%08X", magic)}
	}

	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != Version {
		return Header{}, &FormatError{Offset: 4, Reason: fmt.Sprintf("unsupported version %d", version)}
	}

	h := Header{
		VocabSize: binary.LittleEndian.Uint32(buf[8:12]),
		Dim:       binary.LittleEndian.Uint32(buf[12:16]),
		HiddenDim: binary.LittleEndian.Uint32(buf[16:20]),
		NLayers:   binary.LittleEndian.Uint32(buf[20:24]),
		NHeads:    binary.LittleEndian.Uint32(buf[24:28]),
		NKVHeads:  binary.LittleEndian.Uint32(buf[28:32]),
		MaxSeqLen: binary.LittleEndian.Uint32(buf[32:36]),
		RopeTheta: float32FromBits(binary.LittleEndian.Uint32(buf[36:40])),
		GroupSize: binary.LittleEndian.Uint32(buf[40:44]),
	}
	h.SharedClassifier = buf[44]&flagSharedClassifier != 0

	for i, b := range buf[45:HeaderSize] {
		if b != 0 {
			return Header{}, &FormatError{Offset: int64(45 + i), Reason: "reserved byte must be zero"}
		}
	}

	if err := h.Validate(); err != nil {
		return Header{}, &FormatError{Offset: 8, Reason: err.Error()}
	}

	return h, nil
}

// WriteHeader writes the 256-byte header, zero-padding the reserved region.
func WriteHeader(w io.Writer, h Header) error {
	if err := h.Validate(); err != nil {
		return &FormatError{Offset: 8, Reason: err.Error()}
	}

	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint32(buf[4:8], Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.VocabSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.Dim)
	binary.LittleEndian.PutUint32(buf[16:20], h.HiddenDim)
	binary.LittleEndian.PutUint32(buf[20:24], h.NLayers)
	binary.LittleEndian.PutUint32(buf[24:28], h.NHeads)
	binary.LittleEndian.PutUint32(buf[28:32], h.NKVHeads)
	binary.LittleEndian.PutUint32(buf[32:36], h.MaxSeqLen)
	binary.LittleEndian.PutUint32(buf[36:40], float32Bits(h.RopeTheta))
	binary.LittleEndian.PutUint32(buf[40:44], h.GroupSize)
	if h.SharedClassifier {
		buf[44] = flagSharedClassifier
	}
	// buf[45:256] stays zero: the reserved region.

	if _, err := w.Write(buf); err != nil {
		return &IoError{Op: "write header", Offset: 0, Err: err}
	}
	return nil
}
