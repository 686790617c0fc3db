package objstorage

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// MemoryBackend is an in-process Backend backed by byte slices, used in
// tests and for tooling that never touches disk.
type MemoryBackend struct {
	mu       sync.Mutex
	dirs     map[string]*memoryDirectory
	nextName int64
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{dirs: make(map[string]*memoryDirectory)}
}

func (m *MemoryBackend) Directories() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.dirs))
	for name := range m.dirs {
		out = append(out, name)
	}
	return out, nil
}

func (m *MemoryBackend) CreateDirectory() (Directory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := fmt.Sprintf("%040x", atomic.AddInt64(&m.nextName, 1))
	d := &memoryDirectory{name: name, files: make(map[string]*memoryFile)}
	m.dirs[name] = d
	return d, nil
}

func (m *MemoryBackend) DirectoryExists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.dirs[name]
	return ok, nil
}

func (m *MemoryBackend) GetDirectory(name string) (Directory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dirs[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "directory %q", name)
	}
	return d, nil
}

// NewNamedDirectory registers a directory under an explicit name,
// bypassing the backend's own name generation. Useful for tests that need
// stable, predictable layer names.
func (m *MemoryBackend) NewNamedDirectory(name string) Directory {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := &memoryDirectory{name: name, files: make(map[string]*memoryFile)}
	m.dirs[name] = d
	return d
}

// CreateNamedDirectory returns the directory named name, creating it if
// absent.
func (m *MemoryBackend) CreateNamedDirectory(name string) (Directory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.dirs[name]
	if !ok {
		d = &memoryDirectory{name: name, files: make(map[string]*memoryFile)}
		m.dirs[name] = d
	}
	return d, nil
}

type memoryDirectory struct {
	mu    sync.Mutex
	name  string
	files map[string]*memoryFile
}

func (d *memoryDirectory) Name() string { return d.name }

func (d *memoryDirectory) GetFile(name string) (File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[name]
	if !ok {
		f = &memoryFile{}
		d.files[name] = f
	}
	return f, nil
}

func (d *memoryDirectory) FileExists(name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.files[name]
	if !ok {
		return false, nil
	}
	return f.exists(), nil
}

type memoryFile struct {
	mu   sync.Mutex
	data []byte
}

func (f *memoryFile) exists() bool {
	return f.data != nil
}

func (f *memoryFile) Exists() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists(), nil
}

func (f *memoryFile) Size() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.data)), nil
}

func (f *memoryFile) OpenWriteFrom(offset int64) (io.WriteCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = []byte{}
	}
	if offset != int64(len(f.data)) {
		return nil, errors.Newf("objstorage: write offset %d does not match current size %d", offset, len(f.data))
	}
	return &memoryWriter{file: f}, nil
}

func (f *memoryFile) OpenReadFrom(offset int64) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return nil, errors.Wrap(ErrNotFound, "file has never been written")
	}
	if offset > int64(len(f.data)) {
		return nil, errors.Newf("objstorage: read offset %d beyond size %d", offset, len(f.data))
	}
	return io.NopCloser(bytes.NewReader(f.data[offset:])), nil
}

func (f *memoryFile) Map() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return nil, nil
	}
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out, nil
}

func (f *memoryFile) Close() error { return nil }

type memoryWriter struct {
	file *memoryFile
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	w.file.mu.Lock()
	defer w.file.mu.Unlock()
	w.file.data = append(w.file.data, p...)
	return len(p), nil
}

func (w *memoryWriter) Close() error { return nil }
