// Package text is the filter for plain-text documents.
package text

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/feichai0017/filter-reader/internal/filter"
)

// Extensions handled by this filter.
var Extensions = []string{".txt", ".text", ".log", ".csv", ".md"}

// maxLine bounds a single line; longer lines fail the read.
const maxLine = 4 * 1024 * 1024

// New returns an unloaded plain-text filter.
func New() filter.Filter {
	return filter.NewSegmentFilter(parse)
}

func parse(ctx context.Context, r io.Reader) (filter.SegmentSource, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &source{scanner: sc, first: true}, nil
}

// source emits one chunk per non-blank line. A run of blank lines turns the
// next chunk into a paragraph break.
type source struct {
	scanner *bufio.Scanner
	first   bool
}

func (s *source) Next(ctx context.Context) (filter.Segment, error) {
	blank := false
	for s.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return filter.Segment{}, err
		}
		line := strings.TrimRight(s.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}

		brk := filter.BreakEOS
		switch {
		case s.first:
			brk = filter.BreakNone
		case blank:
			brk = filter.BreakEOP
		}
		s.first = false
		return filter.Segment{Text: line, Break: brk}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return filter.Segment{}, err
	}
	return filter.Segment{}, io.EOF
}
