package objstorage

import (
	"crypto/rand"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/edsrzf/mmap-go"
)

// DiskBackend is a Backend rooted at a directory on the local filesystem.
// Layer directories are fanned out by the first PrefixDirSize hex
// characters of their name to bound per-directory entry counts, matching
// the convention used for 40-hex-character layer names.
type DiskBackend struct {
	root string
}

// PrefixDirSize is the number of leading hex characters of a directory
// name used to choose its fan-out prefix directory.
const PrefixDirSize = 3

// NewDiskBackend returns a backend rooted at root, which must already
// exist.
func NewDiskBackend(root string) *DiskBackend {
	return &DiskBackend{root: root}
}

func (b *DiskBackend) dirPath(name string) string {
	if len(name) >= PrefixDirSize {
		return filepath.Join(b.root, name[:PrefixDirSize], name)
	}
	return filepath.Join(b.root, name)
}

func (b *DiskBackend) Directories() ([]string, error) {
	var out []string
	prefixes, err := os.ReadDir(b.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "objstorage: listing root")
	}
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(b.root, prefix.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "objstorage: listing prefix directory %q", prefix.Name())
		}
		for _, e := range entries {
			if e.IsDir() {
				out = append(out, e.Name())
			}
		}
	}
	return out, nil
}

func randomHexName() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "objstorage: generating layer name")
	}
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 40)
	for i, bb := range buf {
		out[2*i] = hexDigits[bb>>4]
		out[2*i+1] = hexDigits[bb&0xf]
	}
	return string(out), nil
}

func (b *DiskBackend) CreateDirectory() (Directory, error) {
	name, err := randomHexName()
	if err != nil {
		return nil, err
	}
	path := b.dirPath(name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "objstorage: creating directory %q", name)
	}
	return &diskDirectory{name: name, path: path}, nil
}

func (b *DiskBackend) DirectoryExists(name string) (bool, error) {
	info, err := os.Stat(b.dirPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "objstorage: stat directory %q", name)
	}
	return info.IsDir(), nil
}

func (b *DiskBackend) GetDirectory(name string) (Directory, error) {
	exists, err := b.DirectoryExists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Wrapf(ErrNotFound, "directory %q", name)
	}
	return &diskDirectory{name: name, path: b.dirPath(name)}, nil
}

// CreateNamedDirectory returns the directory named name, creating its
// prefix fan-out directory and itself if absent.
func (b *DiskBackend) CreateNamedDirectory(name string) (Directory, error) {
	path := b.dirPath(name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "objstorage: creating named directory %q", name)
	}
	return &diskDirectory{name: name, path: path}, nil
}

type diskDirectory struct {
	name string
	path string
}

func (d *diskDirectory) Name() string { return d.name }

func (d *diskDirectory) GetFile(name string) (File, error) {
	return &diskFile{path: filepath.Join(d.path, name)}, nil
}

func (d *diskDirectory) FileExists(name string) (bool, error) {
	_, err := os.Stat(filepath.Join(d.path, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "objstorage: stat file %q", name)
	}
	return true, nil
}

// diskFile is a File backed by a single path on disk. Map() memory-maps
// the file read-only via mmap-go, so callers see zero-copy bytes without
// an intervening read(2) + allocation.
type diskFile struct {
	path string
	mm   mmap.MMap
}

func (f *diskFile) Exists() (bool, error) {
	_, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "objstorage: stat %q", f.path)
	}
	return true, nil
}

func (f *diskFile) Size() (int64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "objstorage: stat %q", f.path)
	}
	return info.Size(), nil
}

func (f *diskFile) OpenWriteFrom(offset int64) (io.WriteCloser, error) {
	flags := os.O_WRONLY | os.O_CREATE
	file, err := os.OpenFile(f.path, flags, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "objstorage: opening %q for write", f.path)
	}
	size, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "objstorage: seeking %q", f.path)
	}
	if offset != size {
		file.Close()
		return nil, errors.Newf("objstorage: write offset %d does not match current size %d for %q", offset, size, f.path)
	}
	return file, nil
}

func (f *diskFile) OpenReadFrom(offset int64) (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "file %q", f.path)
		}
		return nil, errors.Wrapf(err, "objstorage: opening %q for read", f.path)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "objstorage: seeking %q", f.path)
	}
	return file, nil
}

// Map memory-maps the file's full contents read-only. An empty or
// nonexistent file maps to a nil slice. The mapping is held open until
// Close is called.
func (f *diskFile) Map() ([]byte, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, errors.Wrapf(err, "objstorage: opening %q to map", f.path)
	}
	defer file.Close()

	mm, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "objstorage: mapping %q", f.path)
	}
	f.mm = mm
	return []byte(mm), nil
}

func (f *diskFile) Close() error {
	if f.mm == nil {
		return nil
	}
	err := f.mm.Unmap()
	f.mm = nil
	if err != nil {
		return errors.Wrapf(err, "objstorage: unmapping %q", f.path)
	}
	return nil
}
