package detector

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// MemFile is an in-memory InputFile, used for uploads already buffered in
// memory and for test fixtures.
type MemFile struct {
	FileName string
	Content  []byte
}

func (f MemFile) Name() string { return f.FileName }

func (f MemFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

// DiskFile is an InputFile backed by a path on disk. Only the base name
// participates in extension matching.
type DiskFile struct {
	Path string
}

func (f DiskFile) Name() string { return filepath.Base(f.Path) }

func (f DiskFile) Open() (io.ReadCloser, error) {
	return os.Open(f.Path)
}
