package layer

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/objstorage"
	"github.com/succinctgraph/triplestore/internal/succinct/adjacency"
	"github.com/succinctgraph/triplestore/internal/succinct/bitarray"
	"github.com/succinctgraph/triplestore/internal/succinct/logarray"
	"github.com/succinctgraph/triplestore/internal/succinct/pfc"
	"github.com/succinctgraph/triplestore/internal/succinct/wavelet"
)

// Blob names within a layer's directory, grounded on the BaseLayerFiles /
// ChildLayerFiles naming scheme: one pair of files per dictionary, one
// (nums, bits) pair per adjacency list, a single bits file per wavelet
// tree (with its width recorded alongside, since the tree format does not
// self-describe it), and a separate 16-byte blob holding the addition and
// removal counts.
const (
	blobNodeDictBlocks  = "node_dictionary_blocks"
	blobNodeDictOffsets = "node_dictionary_offsets"
	blobPredDictBlocks  = "predicate_dictionary_blocks"
	blobPredDictOffsets = "predicate_dictionary_offsets"
	blobValueDictBlocks = "value_dictionary_blocks"
	blobValueDictOffsets = "value_dictionary_offsets"

	blobParent = "parent.hex"
	blobCounts = "triple_counts"
)

// BlobNames returns every blob name Save may write for a layer, given
// whether it carries a negative side (is a child layer) and whether it
// has a parent link recorded. Used by the pack package to enumerate a
// layer directory's contents without depending on layer internals.
func BlobNames(hasNeg, hasParent bool) []string {
	names := []string{
		blobNodeDictBlocks, blobNodeDictOffsets,
		blobPredDictBlocks, blobPredDictOffsets,
		blobValueDictBlocks, blobValueDictOffsets,
		blobCounts,
	}
	names = append(names, sideBlobNameList("pos")...)
	if hasParent {
		names = append(names, blobParent)
	}
	if hasNeg {
		names = append(names, sideBlobNameList("neg")...)
	}
	return names
}

// ParentBlobName is the name of the blob recording a child layer's
// parent id, whose mere presence also marks a layer as a child layer.
const ParentBlobName = blobParent

// NegSPNumsBlobName is the name of the removal side's s→p adjacency nums
// blob, whose presence marks a layer as carrying a removal side.
const NegSPNumsBlobName = "neg_s_p_adjacency_list_nums"

func sideBlobNameList(prefix string) []string {
	a, b, c, d, e, f, g, h := sideBlobNames(prefix)
	return []string{a, b, c, d, e, f, g, h}
}

func sideBlobNames(prefix string) (spNums, spBits, spoNums, spoBits, opsNums, opsBits, waveletBits, waveletWidth string) {
	return prefix + "_s_p_adjacency_list_nums",
		prefix + "_s_p_adjacency_list_bits",
		prefix + "_sp_o_adjacency_list_nums",
		prefix + "_sp_o_adjacency_list_bits",
		prefix + "_o_ps_adjacency_list_nums",
		prefix + "_o_ps_adjacency_list_bits",
		prefix + "_predicate_wavelet_tree_bits",
		prefix + "_predicate_wavelet_tree_width"
}

func writeBlob(dir objstorage.Directory, name string, data []byte) error {
	f, err := dir.GetFile(name)
	if err != nil {
		return errors.Wrapf(err, "layer: opening blob %q", name)
	}
	w, err := f.OpenWriteFrom(0)
	if err != nil {
		return errors.Wrapf(err, "layer: writing blob %q", name)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "layer: writing blob %q", name)
	}
	return errors.Wrapf(w.Close(), "layer: closing blob %q", name)
}

func readBlob(dir objstorage.Directory, name string) ([]byte, error) {
	exists, err := dir.FileExists(name)
	if err != nil {
		return nil, errors.Wrapf(err, "layer: checking blob %q", name)
	}
	if !exists {
		return nil, nil
	}
	f, err := dir.GetFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "layer: opening blob %q", name)
	}
	data, err := f.Map()
	if err != nil {
		return nil, errors.Wrapf(err, "layer: mapping blob %q", name)
	}
	return data, nil
}

func writeSide(dir objstorage.Directory, prefix string, sp, spo, ops adjacency.List, tree wavelet.Tree) error {
	spNumsName, spBitsName, spoNumsName, spoBitsName, opsNumsName, opsBitsName, waveletBitsName, waveletWidthName := sideBlobNames(prefix)

	blobs := map[string][]byte{
		spNumsName:       logArrayBlob(sp.Nums()),
		spBitsName:       bitArrayBlob(sp.Bits().Bits()),
		spoNumsName:      logArrayBlob(spo.Nums()),
		spoBitsName:      bitArrayBlob(spo.Bits().Bits()),
		opsNumsName:      logArrayBlob(ops.Nums()),
		opsBitsName:      bitArrayBlob(ops.Bits().Bits()),
		waveletBitsName:  bitArrayBlob(tree.Index().Bits()),
		waveletWidthName: []byte{byte(tree.Width())},
	}
	for name, data := range blobs {
		if err := writeBlob(dir, name, data); err != nil {
			return err
		}
	}
	return nil
}

// logArrayBlob/bitArrayBlob re-derive the serialized form of an
// already-parsed structure, since adjacency.List and bitarray.Index only
// expose the parsed view, not the original bytes. They round-trip
// exactly: Parse(blob) reconstructs an equal structure.
func logArrayBlob(a interface {
	Len() int
	Width() uint
	Entries() []uint64
}) []byte {
	width := a.Width()
	if width == 0 {
		width = 1
	}
	b := logarray.NewBuilder(width)
	for _, v := range a.Entries() {
		b.Push(v)
	}
	return b.Finalize()
}

func bitArrayBlob(a bitarray.BitArray) []byte {
	b := bitarray.NewBuilder()
	for i := uint64(0); i < a.Len(); i++ {
		b.Push(a.Get(i))
	}
	return b.Finalize()
}

// Save persists l's own files (not its ancestors, which are assumed
// already persisted) into dir.
func Save(dir objstorage.Directory, l *Layer) error {
	nodeBlocks, nodeOffsets := dictBlobs(l.nodeDict)
	predBlocks, predOffsets := dictBlobs(l.predicateDict)
	valueBlocks, valueOffsets := dictBlobs(l.valueDict)

	writes := map[string][]byte{
		blobNodeDictBlocks:   nodeBlocks,
		blobNodeDictOffsets:  nodeOffsets,
		blobPredDictBlocks:   predBlocks,
		blobPredDictOffsets:  predOffsets,
		blobValueDictBlocks:  valueBlocks,
		blobValueDictOffsets: valueOffsets,
		blobCounts:           countsBlob(l.pos.tripleCount, l.neg.tripleCount),
	}
	for name, data := range writes {
		if err := writeBlob(dir, name, data); err != nil {
			return err
		}
	}

	if err := writeSide(dir, "pos", l.pos.sp, l.pos.spo, l.pos.ops, l.pos.wavelet); err != nil {
		return err
	}
	if l.parent != nil {
		if err := writeBlob(dir, blobParent, []byte(l.parent.Name())); err != nil {
			return err
		}
	}
	if l.hasNeg {
		if err := writeSide(dir, "neg", l.neg.sp, l.neg.spo, l.neg.ops, l.neg.wavelet); err != nil {
			return err
		}
	}
	return nil
}

func dictBlobs(d pfc.Dict) (blocks, offsets []byte) {
	b := pfc.NewBuilder()
	for _, s := range d.Strings() {
		b.Add(s)
	}
	return b.Finalize()
}

func countsBlob(pos, neg uint64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], pos)
	binary.BigEndian.PutUint64(buf[8:16], neg)
	return buf
}

func parseCountsBlob(buf []byte) (pos, neg uint64, err error) {
	if len(buf) != 16 {
		return 0, 0, errors.Newf("layer: malformed triple-count blob of %d bytes", len(buf))
	}
	return binary.BigEndian.Uint64(buf[0:8]), binary.BigEndian.Uint64(buf[8:16]), nil
}

// Load reconstructs the Layer persisted at dir, atop the already-loaded
// parent (nil for a base layer directory).
func Load(dir objstorage.Directory, parent *Layer) (*Layer, error) {
	nodeBlocks, err := readBlob(dir, blobNodeDictBlocks)
	if err != nil {
		return nil, err
	}
	nodeOffsets, err := readBlob(dir, blobNodeDictOffsets)
	if err != nil {
		return nil, err
	}
	nodeDict, err := pfc.Parse(nodeBlocks, nodeOffsets)
	if err != nil {
		return nil, errors.Wrap(err, "layer: parsing node dictionary")
	}

	predBlocks, err := readBlob(dir, blobPredDictBlocks)
	if err != nil {
		return nil, err
	}
	predOffsets, err := readBlob(dir, blobPredDictOffsets)
	if err != nil {
		return nil, err
	}
	predDict, err := pfc.Parse(predBlocks, predOffsets)
	if err != nil {
		return nil, errors.Wrap(err, "layer: parsing predicate dictionary")
	}

	valueBlocks, err := readBlob(dir, blobValueDictBlocks)
	if err != nil {
		return nil, err
	}
	valueOffsets, err := readBlob(dir, blobValueDictOffsets)
	if err != nil {
		return nil, err
	}
	valueDict, err := pfc.Parse(valueBlocks, valueOffsets)
	if err != nil {
		return nil, errors.Wrap(err, "layer: parsing value dictionary")
	}

	countsRaw, err := readBlob(dir, blobCounts)
	if err != nil {
		return nil, err
	}
	posCount, negCount, err := parseCountsBlob(countsRaw)
	if err != nil {
		return nil, err
	}

	posSP, posSPO, posOPS, posWavelet, err := readSide(dir, "pos")
	if err != nil {
		return nil, err
	}

	cfg := Config{
		Name:           dir.Name(),
		Parent:         parent,
		NodeDict:       nodeDict,
		PredDict:       predDict,
		ValueDict:      valueDict,
		PosSP:          posSP,
		PosSPO:         posSPO,
		PosOPS:         posOPS,
		PosWavelet:     posWavelet,
		PosTripleCount: posCount,
	}

	hasNeg, err := dir.FileExists(blobParent)
	if err != nil {
		return nil, errors.Wrap(err, "layer: checking for parent marker")
	}
	if hasNeg {
		negSP, negSPO, negOPS, negWavelet, err := readSide(dir, "neg")
		if err != nil {
			return nil, err
		}
		cfg.HasNeg = true
		cfg.NegSP, cfg.NegSPO, cfg.NegOPS, cfg.NegWavelet = negSP, negSPO, negOPS, negWavelet
		cfg.NegTripleCount = negCount
	}

	return New(cfg)
}

func readSide(dir objstorage.Directory, prefix string) (sp, spo, ops adjacency.List, tree wavelet.Tree, err error) {
	spNumsName, spBitsName, spoNumsName, spoBitsName, opsNumsName, opsBitsName, waveletBitsName, waveletWidthName := sideBlobNames(prefix)

	sp, err = parseAdjacency(dir, spNumsName, spBitsName)
	if err != nil {
		return sp, spo, ops, tree, err
	}
	spo, err = parseAdjacency(dir, spoNumsName, spoBitsName)
	if err != nil {
		return sp, spo, ops, tree, err
	}
	ops, err = parseAdjacency(dir, opsNumsName, opsBitsName)
	if err != nil {
		return sp, spo, ops, tree, err
	}

	widthRaw, err := readBlob(dir, waveletWidthName)
	if err != nil {
		return sp, spo, ops, tree, err
	}
	if len(widthRaw) != 1 {
		return sp, spo, ops, tree, errors.Newf("layer: malformed wavelet width blob for %q", prefix)
	}
	bitsRaw, err := readBlob(dir, waveletBitsName)
	if err != nil {
		return sp, spo, ops, tree, err
	}
	bits, err := bitarray.Parse(bitsRaw)
	if err != nil {
		return sp, spo, ops, tree, errors.Wrapf(err, "layer: parsing %s wavelet bits", prefix)
	}
	width := uint(widthRaw[0])
	index := bitarray.BuildIndex(bits, bitarray.DefaultSuperblockFactor)
	var n uint64
	if width > 0 {
		n = bits.Len() / uint64(width)
	}
	tree, err = wavelet.FromParts(n, width, index)
	if err != nil {
		return sp, spo, ops, tree, errors.Wrapf(err, "layer: assembling %s wavelet tree", prefix)
	}
	return sp, spo, ops, tree, nil
}

func parseAdjacency(dir objstorage.Directory, numsName, bitsName string) (adjacency.List, error) {
	nums, err := readBlob(dir, numsName)
	if err != nil {
		return adjacency.List{}, err
	}
	bitsRaw, err := readBlob(dir, bitsName)
	if err != nil {
		return adjacency.List{}, err
	}
	numsArr, err := logarray.Parse(nums)
	if err != nil {
		return adjacency.List{}, errors.Wrapf(err, "layer: parsing %s", numsName)
	}
	bits, err := bitarray.Parse(bitsRaw)
	if err != nil {
		return adjacency.List{}, errors.Wrapf(err, "layer: parsing %s", bitsName)
	}
	return adjacency.FromParts(numsArr, bitarray.BuildIndex(bits, bitarray.DefaultSuperblockFactor)), nil
}
