// Package pack implements bulk transfer of layer directories as a single
// gzip-compressed tar stream, the unit in which a store hands a subset
// of its layers to another store (or a backup).
package pack

import (
	"archive/tar"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"

	"github.com/succinctgraph/triplestore/internal/objstorage"
	"github.com/succinctgraph/triplestore/layer"
)

// Export writes a gzip-compressed tar of the named layer directories to
// w, one top-level tar entry per blob, named "<layerID>/<blobName>".
// Layer ids that do not exist in backend are skipped.
func Export(w io.Writer, backend objstorage.Backend, layerIDs []string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	for _, id := range layerIDs {
		exists, err := backend.DirectoryExists(id)
		if err != nil {
			return errors.Wrapf(err, "pack: checking layer %q", id)
		}
		if !exists {
			continue
		}
		dir, err := backend.GetDirectory(id)
		if err != nil {
			return errors.Wrapf(err, "pack: opening layer %q", id)
		}
		if err := exportDirectory(tw, dir); err != nil {
			return errors.Wrapf(err, "pack: exporting layer %q", id)
		}
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "pack: closing tar writer")
	}
	return errors.Wrap(gz.Close(), "pack: closing gzip writer")
}

func exportDirectory(tw *tar.Writer, dir objstorage.Directory) error {
	hasParent, err := dir.FileExists(layer.ParentBlobName)
	if err != nil {
		return err
	}
	hasNeg, err := dir.FileExists(layer.NegSPNumsBlobName)
	if err != nil {
		return err
	}

	for _, name := range layer.BlobNames(hasNeg, hasParent) {
		exists, err := dir.FileExists(name)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		f, err := dir.GetFile(name)
		if err != nil {
			return err
		}
		data, err := f.Map()
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name:     dir.Name() + "/" + name,
			Mode:     0o644,
			Size:     int64(len(data)),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "pack: writing tar header for %q", hdr.Name)
		}
		if _, err := tw.Write(data); err != nil {
			_ = f.Close()
			return errors.Wrapf(err, "pack: writing tar body for %q", hdr.Name)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Import reads a gzip-compressed tar produced by Export and materializes
// every entry whose top-level directory name is in wanted into backend,
// returning the set of layer ids actually extracted. Entries for layer
// ids not in wanted are skipped without error, matching a partial
// transfer where the pack carries more history than the importer asked
// for.
func Import(r io.Reader, backend objstorage.Backend, wanted []string) ([]string, error) {
	wantSet := make(map[string]bool, len(wanted))
	for _, id := range wanted {
		wantSet[id] = true
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "pack: opening gzip stream")
	}
	defer gz.Close()
	tr := tar.NewReader(gz)

	imported := make(map[string]bool)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "pack: reading tar entry")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		layerID, blobName, ok := strings.Cut(hdr.Name, "/")
		if !ok || blobName == "" {
			continue
		}
		if !wantSet[layerID] {
			continue
		}

		dir, err := backend.CreateNamedDirectory(layerID)
		if err != nil {
			return nil, errors.Wrapf(err, "pack: creating layer directory %q", layerID)
		}
		f, err := dir.GetFile(blobName)
		if err != nil {
			return nil, errors.Wrapf(err, "pack: opening blob %q in layer %q", blobName, layerID)
		}
		out, err := f.OpenWriteFrom(0)
		if err != nil {
			return nil, errors.Wrapf(err, "pack: writing blob %q in layer %q", blobName, layerID)
		}
		if _, err := io.Copy(out, tr); err != nil {
			_ = out.Close()
			return nil, errors.Wrapf(err, "pack: copying blob %q in layer %q", blobName, layerID)
		}
		if err := out.Close(); err != nil {
			return nil, errors.Wrapf(err, "pack: closing blob %q in layer %q", blobName, layerID)
		}

		imported[layerID] = true
	}

	out := make([]string, 0, len(imported))
	for id := range imported {
		out = append(out, id)
	}
	return out, nil
}
