// Package reader turns a chunk-oriented document filter into a sequential,
// peekable stream of runes.
//
// A Reader owns the filter it reads from and releases it on Close. Readers
// are not safe for concurrent use.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

// ErrClosed is returned by reads on a closed Reader.
var ErrClosed = errors.New("reader: read on closed reader")

// ErrInvalidArgument is returned by ReadBlock for an out-of-range window.
var ErrInvalidArgument = errors.New("reader: invalid buffer window")

// ErrPartialRune is returned by rune reads while Read still holds the tail of
// a multi-byte rune.
var ErrPartialRune = errors.New("reader: rune partially consumed by Read")

// Resolver supplies loaded filters for documents.
type Resolver interface {
	ResolvePath(ctx context.Context, path string) (filter.Filter, error)
	ResolveStream(ctx context.Context, r io.Reader, ext string) (filter.Filter, error)
}

// State is the lifecycle stage of a Reader.
type State int

const (
	StateOpen State = iota
	StateExhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reader reads text from a filter one rune at a time.
type Reader struct {
	filter filter.Filter
	opts   options
	log    logger.Logger

	buf           runeQueue
	scratch       []rune
	spill         []byte
	hasMoreChunks bool
	pulling       bool
	chunkID       uint32
	err           error
	closed        bool
}

// New adopts f. The Reader closes f when it is closed.
func New(f filter.Filter, opts ...Option) (*Reader, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil filter", filter.ErrUnavailable)
	}
	o := newOptions(opts)
	return &Reader{
		filter:        f,
		opts:          o,
		log:           o.logger.Named("reader"),
		hasMoreChunks: true,
	}, nil
}

// Open resolves a filter for the file at path.
func Open(ctx context.Context, res Resolver, path string, opts ...Option) (*Reader, error) {
	f, err := res.ResolvePath(ctx, path)
	if err != nil {
		return nil, err
	}
	return New(f, append([]Option{WithContext(ctx)}, opts...)...)
}

// OpenStream resolves a filter for stream. ext selects the filter and may be
// empty to detect the type from content.
func OpenStream(ctx context.Context, res Resolver, stream io.Reader, ext string, opts ...Option) (*Reader, error) {
	f, err := res.ResolveStream(ctx, stream, ext)
	if err != nil {
		return nil, err
	}
	return New(f, append([]Option{WithContext(ctx)}, opts...)...)
}

// State reports where the reader is in its lifecycle.
func (r *Reader) State() State {
	switch {
	case r.closed:
		return StateClosed
	case !r.hasMoreChunks && r.buf.Len() == 0:
		return StateExhausted
	default:
		return StateOpen
	}
}

// Peek returns the next rune without consuming it.
func (r *Reader) Peek() (rune, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if r.buf.Len() == 0 {
		ok, err := r.fill()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, io.EOF
		}
	}
	return r.buf.Front(), nil
}

// ReadRune consumes the next rune. size is its UTF-8 length.
func (r *Reader) ReadRune() (rune, int, error) {
	if err := r.ready(); err != nil {
		return 0, 0, err
	}
	if r.buf.Len() == 0 {
		ok, err := r.fill()
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			return 0, 0, io.EOF
		}
	}
	c := r.buf.Pop()
	return c, runeLen(c), nil
}

// ready reports why runes cannot be delivered: a closed reader, an earlier
// protocol failure, or a rune half delivered through Read.
func (r *Reader) ready() error {
	switch {
	case r.closed:
		return ErrClosed
	case r.err != nil:
		return r.err
	case len(r.spill) > 0:
		return ErrPartialRune
	}
	return nil
}

// ReadLine returns the next line without its terminator. Lines end at "\n",
// "\r" or "\r\n". io.EOF is returned once no runes remain to start a line.
func (r *Reader) ReadLine() (string, error) {
	var sb strings.Builder
	started := false
	for {
		c, _, err := r.ReadRune()
		if errors.Is(err, io.EOF) {
			if !started {
				return "", io.EOF
			}
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		started = true

		switch c {
		case '\n':
			return sb.String(), nil
		case '\r':
			next, err := r.Peek()
			if err == nil && next == '\n' {
				r.buf.Pop()
			} else if err != nil && !errors.Is(err, io.EOF) {
				return "", err
			}
			return sb.String(), nil
		}
		sb.WriteRune(c)
	}
}

// ReadBlock fills buf[offset:offset+count] and returns how many runes were
// stored. It returns 0 and io.EOF only when the stream is exhausted.
func (r *Reader) ReadBlock(buf []rune, offset, count int) (int, error) {
	if offset < 0 || count < 0 || offset > len(buf) || count > len(buf)-offset {
		return 0, ErrInvalidArgument
	}
	if err := r.ready(); err != nil {
		return 0, err
	}

	filled := 0
	for filled < count {
		if r.buf.Len() == 0 {
			ok, err := r.fill()
			if err != nil {
				return filled, err
			}
			if !ok {
				break
			}
		}
		filled += r.buf.PopInto(buf[offset+filled : offset+count])
	}

	if filled == 0 && count > 0 {
		return 0, io.EOF
	}
	return filled, nil
}

// Close releases the filter. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.buf.Reset()
	r.spill = nil
	r.scratch = nil

	f := r.filter
	r.filter = nil
	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil {
		r.log.Error("Failed to release filter", logger.Error(err))
		return fmt.Errorf("failed to release filter: %w", err)
	}
	return nil
}

// fill pulls chunks until the buffer holds runes or the filter runs out. It
// reports whether the buffer is non-empty.
func (r *Reader) fill() (bool, error) {
	if r.closed {
		return false, ErrClosed
	}
	if r.err != nil {
		return false, r.err
	}

	for r.hasMoreChunks && r.buf.Len() == 0 {
		if r.pulling {
			if err := r.pullText(); err != nil {
				return false, err
			}
			continue
		}

		if err := r.opts.ctx.Err(); err != nil {
			return false, err
		}
		chunk, status, err := r.filter.NextChunk(r.opts.ctx)
		if err != nil {
			return false, r.failCall("chunk", uint32(status), err)
		}

		switch status {
		case filter.ChunkOK:
			if chunk.State != filter.ChunkText {
				r.log.Debug("Skipping non-text chunk",
					logger.Uint32("chunk", chunk.ID),
					logger.Stringer("state", chunk.State),
				)
				continue
			}
			r.chunkID = chunk.ID
			r.insertBreak(chunk.Break)
			r.pulling = true
		case filter.ChunkEndOfChunks:
			r.hasMoreChunks = false
			r.log.Debug("Filter reported end of chunks")
		case filter.ChunkEmbeddingUnavailable, filter.ChunkLinkUnavailable:
			r.log.Debug("Skipping unavailable object", logger.Stringer("status", status))
		default:
			return false, r.fail(&filter.ProtocolError{Op: "chunk", Status: uint32(status), ChunkID: r.chunkID})
		}
	}

	return r.buf.Len() > 0, nil
}

func (r *Reader) insertBreak(b filter.BreakType) {
	switch b {
	case filter.BreakEOW:
		r.buf.Push(' ')
	case filter.BreakEOS, filter.BreakEOP, filter.BreakEOC:
		r.buf.PushString(r.opts.newline)
	}
}

// pullText drains the current chunk into the buffer.
func (r *Reader) pullText() error {
	if r.scratch == nil {
		r.scratch = make([]rune, r.opts.pullSize)
	}

	empty := 0
	for r.pulling {
		if err := r.opts.ctx.Err(); err != nil {
			return err
		}
		n, status, err := r.filter.GetText(r.opts.ctx, r.scratch)
		if err != nil {
			return r.failCall("text", uint32(status), err)
		}
		r.log.Debug("Pulled chunk text",
			logger.Uint32("chunk", r.chunkID),
			logger.Int("requested", len(r.scratch)),
			logger.Int("received", n),
			logger.Stringer("status", status),
		)

		switch status {
		case filter.TextMore, filter.TextLast:
			if n < 0 || n > len(r.scratch) {
				return r.fail(&filter.ProtocolError{
					Op:      "text",
					Status:  uint32(status),
					ChunkID: r.chunkID,
					Err:     fmt.Errorf("reported %d runes for a %d rune buffer", n, len(r.scratch)),
				})
			}
			r.buf.PushAll(r.scratch[:n])
			if status == filter.TextLast {
				r.pulling = false
			} else if n == 0 {
				empty++
				if empty >= stallLimit {
					return r.fail(&filter.ProtocolError{Op: "text", Status: uint32(status), ChunkID: r.chunkID, Err: filter.ErrStalled})
				}
			} else {
				empty = 0
			}
		case filter.TextNoMore:
			r.pulling = false
		case filter.TextNone:
			return r.fail(&filter.ProtocolError{
				Op:      "text",
				Status:  uint32(status),
				ChunkID: r.chunkID,
				Err:     errors.New("text chunk returned no text"),
			})
		default:
			return r.fail(&filter.ProtocolError{Op: "text", Status: uint32(status), ChunkID: r.chunkID})
		}
	}
	return nil
}

// failCall classifies an error returned by a filter call. Cancellation passes
// through untouched; everything else is fatal.
func (r *Reader) failCall(op string, status uint32, err error) error {
	if ctxErr := r.opts.ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return r.fail(&filter.ProtocolError{Op: op, Status: status, ChunkID: r.chunkID, Err: err})
}

func (r *Reader) fail(err error) error {
	r.err = err
	r.pulling = false
	r.buf.Reset()
	r.log.Error("Filter protocol failure", logger.Error(err))
	return err
}

var (
	_ io.RuneReader = (*Reader)(nil)
	_ io.Closer     = (*Reader)(nil)
)
