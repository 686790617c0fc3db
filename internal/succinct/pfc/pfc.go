// Package pfc implements a Plain Front-Coded (PFC) string dictionary:
// strings arrive in strictly ascending byte order and are grouped into
// fixed-size blocks of 8. Within a block the first ("head") string is
// stored verbatim, NUL-terminated; the following seven are stored as a
// vbyte-encoded common-prefix length against the previous string, plus a
// NUL-terminated suffix. Ids are 1-based: id == 1 + position.
package pfc

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/succinctgraph/triplestore/internal/succinct/logarray"
	"github.com/succinctgraph/triplestore/internal/succinct/vbyte"
)

// BlockSize is the number of strings grouped per PFC block.
const BlockSize = 8

// ErrInvalidCoding is returned for malformed dictionary bytes: a missing
// NUL terminator, a truncated vbyte, or a truncated footer.
var ErrInvalidCoding = errors.New("pfc: invalid coding")

const footerLen = 8

// Dict is a read-only, memory-mapped PFC dictionary.
type Dict struct {
	nStrings     uint64
	blockOffsets logarray.LogArray // offset of block i (i>=1); block 0 starts at 0
	blocks       []byte            // encoded blocks, including the trailing pad+count footer
}

// Parse interprets the blocks and offsets blobs as a Dict.
func Parse(blocks, offsets []byte) (Dict, error) {
	if len(blocks) < footerLen {
		return Dict{}, errors.Wrapf(ErrInvalidCoding, "blocks buffer of %d bytes too small for footer", len(blocks))
	}
	n := binary.BigEndian.Uint64(blocks[len(blocks)-footerLen:])

	var blockOffsets logarray.LogArray
	if n > BlockSize {
		var err error
		blockOffsets, err = logarray.Parse(offsets)
		if err != nil {
			return Dict{}, errors.Wrapf(err, "pfc: parsing block offsets")
		}
	}

	return Dict{nStrings: n, blockOffsets: blockOffsets, blocks: blocks}, nil
}

// Len returns the number of strings in the dictionary.
func (d Dict) Len() int { return int(d.nStrings) }

func (d Dict) numBlocks() int {
	if d.nStrings == 0 {
		return 0
	}
	return int((d.nStrings + BlockSize - 1) / BlockSize)
}

func (d Dict) blockOffset(block int) int {
	if block == 0 {
		return 0
	}
	return int(d.blockOffsets.Entry(block - 1))
}

func (d Dict) blockRemainder(block int) int {
	rem := int(d.nStrings) - block*BlockSize
	if rem > BlockSize {
		rem = BlockSize
	}
	return rem
}

// nulString reads a NUL-terminated string starting at offset, returning
// the string and the offset just past the terminator.
func nulString(data []byte, offset int) (string, int, error) {
	idx := bytes.IndexByte(data[offset:], 0)
	if idx < 0 {
		return "", 0, errors.Wrap(ErrInvalidCoding, "missing NUL terminator")
	}
	return string(data[offset : offset+idx]), offset + idx + 1, nil
}

// decodeBlock decodes up to `limit` strings starting at byte offset
// `blockOffset` within d.blocks.
func (d Dict) decodeBlock(blockOffset, limit int) ([]string, error) {
	out := make([]string, 0, limit)
	if limit == 0 {
		return out, nil
	}

	head, pos, err := nulString(d.blocks, blockOffset)
	if err != nil {
		return nil, err
	}
	out = append(out, head)
	last := []byte(head)

	for i := 1; i < limit; i++ {
		common, n, err := vbyte.Decode(d.blocks[pos:])
		if err != nil {
			return nil, errors.Wrap(err, "pfc: decoding common-prefix length")
		}
		pos += n

		suffixEnd := bytes.IndexByte(d.blocks[pos:], 0)
		if suffixEnd < 0 {
			return nil, errors.Wrap(ErrInvalidCoding, "missing NUL terminator")
		}
		suffix := d.blocks[pos : pos+suffixEnd]
		pos += suffixEnd + 1

		if int(common) > len(last) {
			return nil, errors.Wrap(ErrInvalidCoding, "common prefix longer than previous string")
		}
		next := append(append([]byte{}, last[:common]...), suffix...)
		out = append(out, string(next))
		last = next
	}
	return out, nil
}

// blockHead returns the first (head) string of the block starting at byte
// offset blockOffset, without decoding the rest of the block.
func (d Dict) blockHead(blockOffset int) (string, error) {
	head, _, err := nulString(d.blocks, blockOffset)
	return head, err
}

// Get returns the string with the given 1-based id.
func (d Dict) Get(id uint64) (string, bool) {
	if id < 1 || id > d.nStrings {
		return "", false
	}
	pos := int(id - 1)
	block := pos / BlockSize
	within := pos % BlockSize

	strs, err := d.decodeBlock(d.blockOffset(block), within+1)
	if err != nil {
		panic(errors.Wrap(err, "pfc: corrupt dictionary"))
	}
	return strs[within], true
}

// Id returns the 1-based id of s, if present.
func (d Dict) Id(s string) (uint64, bool) {
	numBlocks := d.numBlocks()
	if numBlocks == 0 {
		return 0, false
	}

	lo, hi := 0, numBlocks-1
	for lo <= hi {
		mid := (lo + hi) / 2
		head, err := d.blockHead(d.blockOffset(mid))
		if err != nil {
			panic(errors.Wrap(err, "pfc: corrupt dictionary"))
		}
		switch {
		case s == head:
			return uint64(mid*BlockSize + 1), true
		case s < head:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}

	// s belongs somewhere within block `hi` (the block whose head is the
	// largest head <= s), if it exists at all.
	if hi < 0 {
		return 0, false
	}

	strs, err := d.decodeBlock(d.blockOffset(hi), d.blockRemainder(hi))
	if err != nil {
		panic(errors.Wrap(err, "pfc: corrupt dictionary"))
	}
	for i, cand := range strs {
		if cand == s {
			return uint64(hi*BlockSize + i + 1), true
		}
	}
	return 0, false
}

// Iterator walks the dictionary's strings in id order, block by block.
type Iterator struct {
	dict      Dict
	nextBlock int
	cur       []string
	curIdx    int
}

// Iter returns a restartable iterator over the dictionary's strings.
func (d Dict) Iter() *Iterator {
	return &Iterator{dict: d}
}

// Next returns the next string and true, or ("", false) at the end.
func (it *Iterator) Next() (string, bool) {
	for it.curIdx >= len(it.cur) {
		if it.nextBlock*BlockSize >= it.dict.Len() {
			return "", false
		}
		strs, err := it.dict.decodeBlock(it.dict.blockOffset(it.nextBlock), it.dict.blockRemainder(it.nextBlock))
		if err != nil {
			panic(errors.Wrap(err, "pfc: corrupt dictionary"))
		}
		it.cur = strs
		it.curIdx = 0
		it.nextBlock++
	}
	s := it.cur[it.curIdx]
	it.curIdx++
	return s, true
}

// Strings materializes every string in the dictionary, in id order.
func (d Dict) Strings() []string {
	out := make([]string, 0, d.Len())
	it := d.Iter()
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, s)
	}
	return out
}

func findCommonPrefix(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Builder incrementally constructs a PFC dictionary from strings added in
// strictly ascending order.
type Builder struct {
	blocksBuf []byte
	offsets   []uint64
	count     int
	last      []byte
}

// NewBuilder returns an empty PFC dictionary builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends s, which must be strictly greater than the previously added
// string. It returns the 1-based id assigned to s.
func (b *Builder) Add(s string) uint64 {
	bs := []byte(s)
	if b.count > 0 && bytes.Compare(bs, b.last) <= 0 {
		panic(errors.Safe(errors.Newf("pfc: %q is not a strict successor of the previous entry", s)))
	}

	if b.count%BlockSize == 0 {
		if b.count != 0 {
			b.offsets = append(b.offsets, uint64(len(b.blocksBuf)))
		}
		b.blocksBuf = append(b.blocksBuf, bs...)
		b.blocksBuf = append(b.blocksBuf, 0)
	} else {
		common := findCommonPrefix(b.last, bs)
		b.blocksBuf = vbyte.Encode(b.blocksBuf, uint64(common))
		b.blocksBuf = append(b.blocksBuf, bs[common:]...)
		b.blocksBuf = append(b.blocksBuf, 0)
	}

	b.last = bs
	b.count++
	return uint64(b.count)
}

// AddAll adds every string from ss in order, returning their assigned ids.
func (b *Builder) AddAll(ss []string) []uint64 {
	ids := make([]uint64, len(ss))
	for i, s := range ss {
		ids[i] = b.Add(s)
	}
	return ids
}

// Count returns the number of strings added so far.
func (b *Builder) Count() int { return b.count }

// Finalize returns the (blocksBlob, offsetsBlob) pair for this dictionary.
func (b *Builder) Finalize() (blocks, offsets []byte) {
	// Pad to an 8-byte alignment boundary, then append the big-endian
	// string count.
	pad := (8 - len(b.blocksBuf)%8) % 8
	blocksBlob := append(append([]byte{}, b.blocksBuf...), make([]byte, pad)...)
	footer := make([]byte, footerLen)
	binary.BigEndian.PutUint64(footer, uint64(b.count))
	blocksBlob = append(blocksBlob, footer...)

	var offsetsBlob []byte
	if len(b.offsets) > 0 {
		lb := logarray.NewBuilder(bitWidth(b.offsets[len(b.offsets)-1]))
		lb.PushAll(b.offsets)
		offsetsBlob = lb.Finalize()
	} else {
		lb := logarray.NewBuilder(1)
		offsetsBlob = lb.Finalize()
	}

	return blocksBlob, offsetsBlob
}

func bitWidth(v uint64) uint {
	if v == 0 {
		return 1
	}
	n := uint(0)
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}
