package layer

import "github.com/succinctgraph/triplestore/internal/slog"

// DefaultSuperblockFactor is the BitIndex superblock factor used when
// Options is nil or its SuperblockFactor is zero.
const DefaultSuperblockFactor = indexK

// Options carries the tunables a caller embedding this package may want
// to override, the same way sstable.Options does for Pebble's own
// reader/writer: a nil *Options, or any zero-valued field within one, is
// a valid default.
type Options struct {
	// Logger receives diagnostic messages as layers are built.
	// A nil Logger discards everything.
	Logger slog.Logger
	// SuperblockFactor overrides the BitIndex superblock factor (how many
	// blocks share one cumulative rank entry). Zero means
	// DefaultSuperblockFactor.
	SuperblockFactor int
}

func (o *Options) logger() slog.Logger {
	if o == nil {
		return slog.Discard
	}
	return slog.OrDiscard(o.Logger)
}

func (o *Options) superblockFactor() int {
	if o == nil || o.SuperblockFactor == 0 {
		return DefaultSuperblockFactor
	}
	return o.SuperblockFactor
}
