//go:build windows

// mapping_windows.go - read-only file mapping via golang.org/x/sys/windows
package artifact

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Map memory-maps path read-only and returns a Mapping over its full
// contents. The mapping is closed by calling Mapping.Close.
func Map(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IoError{Op: "open", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &IoError{Op: "stat", Err: err}
	}
	size := info.Size()
	if size == 0 {
		return nil, &IoError{Op: "mmap", Err: errShortRead}
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, &IoError{Op: "mmap", Err: err}
	}
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		return nil, &IoError{Op: "mmap", Err: err}
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return &Mapping{
		Bytes: data,
		close: func() error { return windows.UnmapViewOfFile(addr) },
	}, nil
}
