// Package pdf is the filter for PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/filter-reader/internal/filter"
)

// Extensions handled by this filter.
var Extensions = []string{".pdf"}

// New returns an unloaded PDF filter.
func New() filter.Filter {
	return filter.NewSegmentFilter(parse)
}

func parse(ctx context.Context, r io.Reader) (filter.SegmentSource, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return &source{pdf: pdfReader, pages: pdfReader.NumPage(), first: true}, nil
}

// source walks pages lazily and emits one chunk per text row.
type source struct {
	pdf   *pdf.Reader
	pages int
	page  int
	rows  pdf.Rows
	row   int
	first bool
	// newPage is set until the first row of a page is emitted.
	newPage   bool
	titleSent bool
}

func (s *source) Next(ctx context.Context) (seg filter.Segment, err error) {
	defer func() {
		// the pdf package panics on some malformed content streams
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf on page %d: %v", s.page, r)
		}
	}()

	if !s.titleSent {
		s.titleSent = true
		if title := s.title(); title != "" {
			return filter.Segment{Text: title, Value: true}, nil
		}
	}

	for {
		for s.row < len(s.rows) {
			row := s.rows[s.row]
			s.row++
			text := rowText(row)
			if text == "" {
				continue
			}

			brk := filter.BreakEOS
			switch {
			case s.first:
				brk = filter.BreakNone
			case s.newPage:
				brk = filter.BreakEOC
			}
			s.first = false
			s.newPage = false
			return filter.Segment{Text: text, Break: brk}, nil
		}

		if err := ctx.Err(); err != nil {
			return filter.Segment{}, err
		}
		if s.page >= s.pages {
			return filter.Segment{}, io.EOF
		}
		s.page++
		s.rows, s.row = nil, 0
		s.newPage = true

		page := s.pdf.Page(s.page)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return filter.Segment{}, fmt.Errorf("failed to get text from page %d: %w", s.page, err)
		}
		s.rows = rows
	}
}

func (s *source) title() string {
	trailer := s.pdf.Trailer()
	if trailer.IsNull() {
		return ""
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return ""
	}
	title := info.Key("Title")
	if title.IsNull() {
		return ""
	}
	return strings.TrimSpace(title.Text())
}

func rowText(row *pdf.Row) string {
	var sb strings.Builder
	for _, t := range row.Content {
		sb.WriteString(t.S)
	}
	return strings.TrimSpace(sb.String())
}
