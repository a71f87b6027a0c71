package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Segment is one chunk worth of parsed document content.
type Segment struct {
	Text  string
	Break BreakType
	// Value marks property content that must not be read as text.
	Value bool
	// Status, when not ChunkOK, reports a skippable condition instead of a chunk.
	Status ChunkStatus
}

// SegmentSource yields segments in document order and returns io.EOF after the
// last one.
type SegmentSource interface {
	Next(ctx context.Context) (Segment, error)
}

// ParseFunc turns document content into a segment source.
type ParseFunc func(ctx context.Context, r io.Reader) (SegmentSource, error)

// SegmentFilter serves a SegmentSource through the chunk/text protocol.
type SegmentFilter struct {
	parse  ParseFunc
	source SegmentSource

	chunkID uint32
	state   ChunkState
	pending []rune
	served  bool
	done    bool
	closed  bool
}

// NewSegmentFilter returns a filter that loads documents with parse.
func NewSegmentFilter(parse ParseFunc) *SegmentFilter {
	return &SegmentFilter{parse: parse}
}

// Load parses r. A filter can be loaded once.
func (f *SegmentFilter) Load(ctx context.Context, r io.Reader) error {
	if f.closed {
		return errors.New("filter is closed")
	}
	if f.source != nil {
		return errors.New("filter already loaded")
	}
	src, err := f.parse(ctx, r)
	if err != nil {
		return err
	}
	f.source = src
	return nil
}

func (f *SegmentFilter) NextChunk(ctx context.Context) (Chunk, ChunkStatus, error) {
	if f.source == nil {
		return Chunk{}, 0, errors.New("filter not loaded")
	}
	if f.done {
		return Chunk{}, ChunkEndOfChunks, nil
	}

	seg, err := f.source.Next(ctx)
	if errors.Is(err, io.EOF) {
		f.done = true
		f.pending = nil
		return Chunk{}, ChunkEndOfChunks, nil
	}
	if err != nil {
		return Chunk{}, 0, fmt.Errorf("failed to read segment: %w", err)
	}
	if seg.Status != ChunkOK {
		f.pending = nil
		f.state = 0
		return Chunk{}, seg.Status, nil
	}

	f.chunkID++
	f.state = ChunkText
	if seg.Value {
		f.state = ChunkValue
	}
	f.pending = []rune(seg.Text)
	f.served = false

	return Chunk{ID: f.chunkID, State: f.state, Break: seg.Break}, ChunkOK, nil
}

func (f *SegmentFilter) GetText(ctx context.Context, buf []rune) (int, TextStatus, error) {
	if f.state != ChunkText {
		return 0, TextNone, nil
	}
	if len(f.pending) == 0 {
		if !f.served {
			// empty text chunk
			f.served = true
			return 0, TextLast, nil
		}
		return 0, TextNoMore, nil
	}

	n := copy(buf, f.pending)
	f.pending = f.pending[n:]
	if len(f.pending) == 0 {
		f.served = true
		return n, TextLast, nil
	}
	return n, TextMore, nil
}

// Close releases the source if it holds resources.
func (f *SegmentFilter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.pending = nil
	if c, ok := f.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
