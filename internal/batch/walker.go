package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
)

// ErrOpenDir is returned when the input folder cannot be opened as a directory.
var ErrOpenDir = errors.New("failed to open directory")

// readChunk is the number of entries read from the directory per call.
const readChunk = 64

// Dir is an open input folder.
type Dir struct {
	path string
	f    *os.File
}

// OpenDir opens path for enumeration.
func OpenDir(path string) (*Dir, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenDir, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpenDir, err)
	}
	if !info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpenDir, &os.PathError{Op: "opendir", Path: path, Err: syscall.ENOTDIR})
	}

	return &Dir{path: path, f: f}, nil
}

// Path returns the folder path as given to OpenDir.
func (d *Dir) Path() string {
	return d.path
}

// Each calls fn with every entry name in the order the operating system
// returns them. Entries are read lazily and not filtered. Enumeration stops
// at the first error returned by fn, which Each returns.
func (d *Dir) Each(fn func(name string) error) error {
	for {
		entries, err := d.f.ReadDir(readChunk)
		for _, e := range entries {
			if ferr := fn(e.Name()); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read directory %s: %w", d.path, err)
		}
	}
}

// Close releases the directory handle.
func (d *Dir) Close() error {
	return d.f.Close()
}
