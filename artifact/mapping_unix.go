//go:build unix

// mapping_unix.go - mmap(2) via golang.org/x/sys/unix
package artifact

import (
	"os"

	"golang.org/x/sys/unix"
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

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, &IoError{Op: "mmap", Err: err}
	}

	return &Mapping{
		Bytes: data,
		close: func() error { return unix.Munmap(data) },
	}, nil
}
