// Package filter defines the chunk/text protocol spoken by document filters and
// the registry that resolves a filter for a file extension.
package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ChunkState classifies the content of a chunk.
type ChunkState uint8

const (
	// ChunkText chunks carry extractable text.
	ChunkText ChunkState = iota + 1
	// ChunkValue chunks carry property values and are never read as text.
	ChunkValue
)

func (s ChunkState) String() string {
	switch s {
	case ChunkText:
		return "text"
	case ChunkValue:
		return "value"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// BreakType is the structural boundary that precedes a chunk.
type BreakType uint8

const (
	BreakNone BreakType = iota
	// BreakEOW ends a word.
	BreakEOW
	// BreakEOS ends a sentence.
	BreakEOS
	// BreakEOP ends a paragraph.
	BreakEOP
	// BreakEOC ends a chapter (page, slide).
	BreakEOC
)

func (b BreakType) String() string {
	switch b {
	case BreakNone:
		return "none"
	case BreakEOW:
		return "eow"
	case BreakEOS:
		return "eos"
	case BreakEOP:
		return "eop"
	case BreakEOC:
		return "eoc"
	default:
		return fmt.Sprintf("break(%d)", uint8(b))
	}
}

// Chunk describes one unit of filter output.
type Chunk struct {
	ID    uint32
	State ChunkState
	Break BreakType
}

// ChunkStatus is the outcome of a chunk fetch. Values outside the declared set
// are fatal and reported verbatim.
type ChunkStatus uint32

const (
	ChunkOK ChunkStatus = iota
	// ChunkEndOfChunks is the normal end of the document.
	ChunkEndOfChunks
	// ChunkEmbeddingUnavailable reports an embedded object the filter cannot open.
	ChunkEmbeddingUnavailable
	// ChunkLinkUnavailable reports a linked object the filter cannot follow.
	ChunkLinkUnavailable
)

func (s ChunkStatus) String() string {
	switch s {
	case ChunkOK:
		return "ok"
	case ChunkEndOfChunks:
		return "end_of_chunks"
	case ChunkEmbeddingUnavailable:
		return "embedding_unavailable"
	case ChunkLinkUnavailable:
		return "link_unavailable"
	default:
		return fmt.Sprintf("0x%08x", uint32(s))
	}
}

// TextStatus is the outcome of a text pull.
type TextStatus uint32

const (
	// TextMore means the pull succeeded and the chunk may hold more text.
	TextMore TextStatus = iota
	// TextLast means the pull returned the final text of the chunk.
	TextLast
	// TextNoMore means the chunk has no text left.
	TextNoMore
	// TextNone means the chunk is not a text chunk.
	TextNone
)

func (s TextStatus) String() string {
	switch s {
	case TextMore:
		return "more"
	case TextLast:
		return "last"
	case TextNoMore:
		return "no_more_text"
	case TextNone:
		return "no_text"
	default:
		return fmt.Sprintf("0x%08x", uint32(s))
	}
}

// Filter is a session against one document. A Filter is owned by a single
// caller and is not safe for concurrent use.
type Filter interface {
	// Load binds the filter to the document content.
	Load(ctx context.Context, r io.Reader) error
	// NextChunk advances to the next chunk.
	NextChunk(ctx context.Context) (Chunk, ChunkStatus, error)
	// GetText copies text of the current chunk into buf and reports how many
	// runes were written.
	GetText(ctx context.Context, buf []rune) (int, TextStatus, error)
	// Close releases the session.
	Close() error
}

// Factory creates an unloaded filter.
type Factory func() Filter

var (
	// ErrUnsupported is returned when no filter is registered for an extension.
	ErrUnsupported = errors.New("text extraction is not supported for this input")
	// ErrUnavailable is returned when a filter exists but could not load the input.
	ErrUnavailable = errors.New("text extraction is unavailable for this input")
	// ErrProtocol marks fatal filter protocol violations.
	ErrProtocol = errors.New("filter protocol error")
	// ErrStalled is reported when a filter keeps answering text pulls with nothing.
	ErrStalled = errors.New("filter stalled without returning text")
)

// ProtocolError is a fatal outcome of a chunk fetch or text pull.
type ProtocolError struct {
	Op      string
	Status  uint32
	ChunkID uint32
	Err     error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("filter %s failed with status 0x%08x (chunk %d)", e.Op, e.Status, e.ChunkID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
