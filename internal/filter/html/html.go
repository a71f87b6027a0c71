// Package html is the filter for HTML documents.
package html

import (
	"context"
	"errors"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/feichai0017/filter-reader/internal/filter"
)

// Extensions handled by this filter.
var Extensions = []string{".htm", ".html", ".xhtml"}

var blockBreaks = map[atom.Atom]filter.BreakType{
	atom.Title: filter.BreakEOP, atom.P: filter.BreakEOP, atom.Div: filter.BreakEOP,
	atom.H1: filter.BreakEOC, atom.H2: filter.BreakEOP, atom.H3: filter.BreakEOP,
	atom.H4: filter.BreakEOP, atom.H5: filter.BreakEOP, atom.H6: filter.BreakEOP,
	atom.Li: filter.BreakEOP, atom.Ul: filter.BreakEOP, atom.Ol: filter.BreakEOP,
	atom.Dl: filter.BreakEOP, atom.Dt: filter.BreakEOP, atom.Dd: filter.BreakEOP,
	atom.Table: filter.BreakEOP, atom.Tr: filter.BreakEOS, atom.Caption: filter.BreakEOP,
	atom.Section: filter.BreakEOP, atom.Article: filter.BreakEOP, atom.Header: filter.BreakEOP,
	atom.Footer: filter.BreakEOP, atom.Nav: filter.BreakEOP, atom.Aside: filter.BreakEOP,
	atom.Blockquote: filter.BreakEOP, atom.Pre: filter.BreakEOP, atom.Figure: filter.BreakEOP,
	atom.Br: filter.BreakEOS, atom.Hr: filter.BreakEOC,
	atom.Td: filter.BreakEOW, atom.Th: filter.BreakEOW,
}

// New returns an unloaded HTML filter.
func New() filter.Filter {
	return filter.NewSegmentFilter(parse)
}

func parse(ctx context.Context, r io.Reader) (filter.SegmentSource, error) {
	return &source{z: html.NewTokenizer(r), first: true}, nil
}

type source struct {
	z       *html.Tokenizer
	pending filter.BreakType
	first   bool
	// hidden is the element whose body is property content, if any.
	hidden atom.Atom
}

func (s *source) Next(ctx context.Context) (filter.Segment, error) {
	for {
		if err := ctx.Err(); err != nil {
			return filter.Segment{}, err
		}

		switch s.z.Next() {
		case html.ErrorToken:
			if err := s.z.Err(); !errors.Is(err, io.EOF) {
				return filter.Segment{}, err
			}
			return filter.Segment{}, io.EOF

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := s.z.Token()
			switch tok.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				s.hidden = tok.DataAtom
			case atom.Iframe, atom.Frame:
				return filter.Segment{Status: filter.ChunkLinkUnavailable}, nil
			case atom.Object, atom.Embed, atom.Applet:
				return filter.Segment{Status: filter.ChunkEmbeddingUnavailable}, nil
			}
			s.breakFor(tok.DataAtom)

		case html.EndTagToken:
			tok := s.z.Token()
			if tok.DataAtom == s.hidden {
				s.hidden = 0
			}
			s.breakFor(tok.DataAtom)

		case html.TextToken:
			raw := string(s.z.Text())
			if s.hidden != 0 {
				if strings.TrimSpace(raw) == "" {
					continue
				}
				return filter.Segment{Text: raw, Value: true}, nil
			}

			words := strings.Fields(raw)
			if len(words) == 0 {
				if raw != "" {
					s.raise(filter.BreakEOW)
				}
				continue
			}
			if startsWithSpace(raw) {
				s.raise(filter.BreakEOW)
			}

			seg := filter.Segment{Text: strings.Join(words, " "), Break: s.pending}
			if s.first {
				seg.Break = filter.BreakNone
				s.first = false
			}
			s.pending = filter.BreakNone
			if endsWithSpace(raw) {
				s.pending = filter.BreakEOW
			}
			return seg, nil
		}
	}
}

func (s *source) breakFor(a atom.Atom) {
	if b, ok := blockBreaks[a]; ok {
		s.raise(b)
	}
}

// raise keeps the strongest break seen since the last text chunk.
func (s *source) raise(b filter.BreakType) {
	if b > s.pending {
		s.pending = b
	}
}

func startsWithSpace(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r)
	}
	return false
}

func endsWithSpace(s string) bool {
	r, size := utf8.DecodeLastRuneInString(s)
	return size > 0 && unicode.IsSpace(r)
}
