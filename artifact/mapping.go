// Package artifact - Read-only Memory Mapping
//
// The actual mmap syscall lives in mapping_unix.go / mapping_windows.go;
// this file holds only the shared Mapping type and the unsafe view helpers.
package artifact

import (
	"errors"
	"unsafe"
)

var errShortRead = errors.New("short read")

// Mapping is a read-only view over a memory-mapped file. The exporter
// writes no alignment padding: the quantized section starts directly
// after the norm section, so its offset is not guaranteed to be 64-byte
// (or even 4-byte) aligned.
type Mapping struct {
	Bytes []byte
	close func() error
}

// Close unmaps the file. Safe to call once; a Mapping must not be used
// afterward.
func (m *Mapping) Close() error {
	if m.close == nil {
		return nil
	}
	return m.close()
}

// int8View reinterprets a []byte as a []int8 without copying. Both types
// have identical representation; this only changes the element type the
// compiler sees.
func int8View(b []byte) []int8 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&b[0])), len(b))
}

// float32View reinterprets a []byte as a []float32 without copying. The
// caller is responsible for ensuring len(b) is a multiple of 4 and that b
// is at least 4-byte aligned; the artifact layout itself does not
// guarantee that alignment for any region past the header.
func float32View(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)
}
