// Package label implements the one mutable pointer in an otherwise
// append-only system: a human-chosen name mapped to the current layer
// id a caller should read. Labels live as plain files directly on disk
// (not through the objstorage write-once blob abstraction, since a
// label is rewritten in place on every update) guarded by an exclusive
// file lock for the compare-and-set.
package label

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
)

// ErrAlreadyExists is returned by CreateLabel when a label of that name
// already exists.
var ErrAlreadyExists = errors.New("label: already exists")

// ErrStaleLabel is returned by SetLabel when expected no longer matches
// the label's current on-disk value: some other writer updated it first.
var ErrStaleLabel = errors.New("label: stale compare-and-set")

// ErrNotFound is returned by GetLabel for an unknown label name.
var ErrNotFound = errors.New("label: not found")

const fileSuffix = ".label"

// Label is a named pointer at a layer. Layer is empty when the label has
// been created but never pointed at a layer; otherwise it is a 40-hex
// layer name. Version increments by exactly one on every successful
// SetLabel, and is the value callers must echo back as expected.
type Label struct {
	Name    string
	Version uint64
	Layer   string
}

// Store is a directory of label files rooted at a local filesystem path.
// The directory must already exist.
type Store struct {
	root string
}

// NewStore returns a Store rooted at root, which must already exist.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name+fileSuffix)
}

// CreateLabel creates a new label named name at version 0 with no layer
// assigned. Returns ErrAlreadyExists if the label already exists.
func (s *Store) CreateLabel(name string) (Label, error) {
	path := s.path(name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return Label{}, errors.Wrapf(ErrAlreadyExists, "label %q", name)
		}
		return Label{}, errors.Wrapf(err, "label: creating %q", name)
	}
	defer f.Close()

	label := Label{Name: name, Version: 0, Layer: ""}
	if _, err := f.Write(encode(label)); err != nil {
		return Label{}, errors.Wrapf(err, "label: writing %q", name)
	}
	return label, nil
}

// GetLabel reads the current value of the label named name.
func (s *Store) GetLabel(name string) (Label, error) {
	return s.readLabel(name)
}

// Labels lists every label currently known to the store.
func (s *Store) Labels() ([]Label, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrap(err, "label: listing store directory")
	}
	var out []Label
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), fileSuffix)
		l, err := s.readLabel(name)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *Store) readLabel(name string) (Label, error) {
	path := s.path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Label{}, errors.Wrapf(ErrNotFound, "label %q", name)
		}
		return Label{}, errors.Wrapf(err, "label: reading %q", name)
	}
	return decode(name, data)
}

// SetLabel atomically advances expected to point at newLayer, succeeding
// only if expected still matches the label's current on-disk value. The
// whole read-compare-write sequence runs under an exclusive file lock,
// so two concurrent writers racing on the same label can never both
// succeed: the loser observes a mismatch and gets ErrStaleLabel. Passing
// an empty newLayer clears the label back to unassigned.
func (s *Store) SetLabel(expected Label, newLayer string) (Label, error) {
	path := s.path(expected.Name)

	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return Label{}, errors.Wrapf(err, "label: locking %q", expected.Name)
	}
	defer fl.Unlock()

	current, err := s.readLabel(expected.Name)
	if err != nil {
		return Label{}, err
	}
	if current != expected {
		return Label{}, errors.Wrapf(ErrStaleLabel, "label %q: expected version %d, current is %d", expected.Name, expected.Version, current.Version)
	}

	updated := Label{Name: expected.Name, Version: expected.Version + 1, Layer: newLayer}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return Label{}, errors.Wrapf(err, "label: opening %q for update", expected.Name)
	}
	defer f.Close()
	if _, err := f.Write(encode(updated)); err != nil {
		return Label{}, errors.Wrapf(err, "label: writing %q", expected.Name)
	}
	return updated, nil
}

func encode(l Label) []byte {
	return []byte(fmt.Sprintf("%d\n%s\n", l.Version, l.Layer))
}

func decode(name string, data []byte) (Label, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 {
		return Label{}, errors.Newf("label: malformed label file for %q: expected two lines, got %d", name, len(lines))
	}
	version, err := strconv.ParseUint(lines[0], 10, 64)
	if err != nil {
		return Label{}, errors.Wrapf(err, "label: parsing version for %q", name)
	}
	return Label{Name: name, Version: version, Layer: lines[1]}, nil
}
