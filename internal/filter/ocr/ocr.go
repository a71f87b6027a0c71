// Package ocr serves recognized image text through the filter protocol.
//
// Recognition is delegated to an Engine; the filter decodes and preprocesses
// the image, then maps the engine's block/paragraph/line layout onto chunk
// breaks: a new block starts a chapter, a new paragraph a paragraph, a new
// line a sentence, and words on one line are separated by word breaks.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

// Extensions lists the image types served by OCR filters.
var Extensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

// Word is one recognized word with its position in the page layout.
type Word struct {
	Text       string
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
}

// Engine recognizes the words in an encoded image.
type Engine interface {
	Recognize(ctx context.Context, image []byte) ([]Word, error)
}

type options struct {
	minConfidence float64
	preprocessors []Preprocessor
	logger        logger.Logger
}

// Option configures an OCR filter.
type Option func(*options)

// WithMinConfidence drops words recognized below c (0-100).
func WithMinConfidence(c float64) Option {
	return func(o *options) { o.minConfidence = c }
}

// WithPreprocessors sets the pipeline applied before recognition. Without
// preprocessors the image bytes go to the engine untouched.
func WithPreprocessors(p ...Preprocessor) Option {
	return func(o *options) { o.preprocessors = p }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns a factory for OCR filters backed by engine.
func New(engine Engine, opts ...Option) filter.Factory {
	o := options{logger: logger.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.Named("ocr")
	return func() filter.Filter {
		return filter.NewSegmentFilter(func(ctx context.Context, r io.Reader) (filter.SegmentSource, error) {
			return recognize(ctx, engine, o, r)
		})
	}
}

func recognize(ctx context.Context, engine Engine, o options, r io.Reader) (filter.SegmentSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(o.preprocessors) > 0 {
		data, err = preprocess(data, o.preprocessors)
		if err != nil {
			return nil, err
		}
	}

	words, err := engine.Recognize(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to recognize text: %w", err)
	}

	segs := layout(words, o.minConfidence)
	o.logger.Debug("Recognized image text",
		logger.Int("words", len(words)),
		logger.Int("kept", len(segs)),
	)
	return &wordSource{segs: segs}, nil
}

func preprocess(data []byte, pipeline []Preprocessor) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	for _, p := range pipeline {
		img, err = p.Process(img)
		if err != nil {
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if img == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// layout converts words to segments, one per word.
func layout(words []Word, minConfidence float64) []filter.Segment {
	segs := make([]filter.Segment, 0, len(words))
	var prev *Word
	for i := range words {
		w := &words[i]
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Confidence < minConfidence {
			continue
		}

		brk := filter.BreakNone
		if prev != nil {
			switch {
			case w.Block != prev.Block:
				brk = filter.BreakEOC
			case w.Paragraph != prev.Paragraph:
				brk = filter.BreakEOP
			case w.Line != prev.Line:
				brk = filter.BreakEOS
			default:
				brk = filter.BreakEOW
			}
		}
		segs = append(segs, filter.Segment{Text: text, Break: brk})
		prev = w
	}
	return segs
}

type wordSource struct {
	segs []filter.Segment
	next int
}

func (s *wordSource) Next(ctx context.Context) (filter.Segment, error) {
	if err := ctx.Err(); err != nil {
		return filter.Segment{}, err
	}
	if s.next >= len(s.segs) {
		return filter.Segment{}, io.EOF
	}
	seg := s.segs[s.next]
	s.next++
	return seg, nil
}
