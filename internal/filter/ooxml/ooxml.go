// Package ooxml is the filter for Office Open XML documents (docx, pptx).
package ooxml

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/feichai0017/filter-reader/internal/filter"
)

// dialect names the markup of one OOXML flavour.
type dialect struct {
	parts     func(files []*zip.File) []*zip.File
	paragraph string
	text      string
	tab       string
	breaks    map[string]bool
	embeds    map[string]bool
}

var wordDialect = dialect{
	parts: func(files []*zip.File) []*zip.File {
		return pick(files, func(name string) bool { return name == "word/document.xml" })
	},
	paragraph: "p",
	text:      "t",
	tab:       "tab",
	breaks:    map[string]bool{"br": true, "cr": true},
	embeds:    map[string]bool{"object": true},
}

var slideDialect = dialect{
	parts: func(files []*zip.File) []*zip.File {
		slides := pick(files, func(name string) bool {
			return path.Dir(name) == "ppt/slides" && strings.HasPrefix(path.Base(name), "slide") && path.Ext(name) == ".xml"
		})
		sort.SliceStable(slides, func(i, j int) bool { return slideNumber(slides[i].Name) < slideNumber(slides[j].Name) })
		return slides
	},
	paragraph: "p",
	text:      "t",
	tab:       "tab",
	breaks:    map[string]bool{"br": true},
	embeds:    map[string]bool{"oleObj": true},
}

// NewDocx returns an unloaded filter for Word documents.
func NewDocx() filter.Filter {
	return filter.NewSegmentFilter(parser(wordDialect))
}

// NewPptx returns an unloaded filter for PowerPoint presentations.
func NewPptx() filter.Filter {
	return filter.NewSegmentFilter(parser(slideDialect))
}

func parser(d dialect) filter.ParseFunc {
	return func(ctx context.Context, r io.Reader) (filter.SegmentSource, error) {
		content, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read package: %w", err)
		}
		zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return nil, fmt.Errorf("failed to open package: %w", err)
		}
		parts := d.parts(zr.File)
		if len(parts) == 0 {
			return nil, errors.New("package has no document parts")
		}
		return &source{
			dialect: d,
			parts:   parts,
			title:   coreTitle(zr.File),
			first:   true,
		}, nil
	}
}

type source struct {
	dialect dialect
	parts   []*zip.File
	next    int
	rc      io.ReadCloser
	dec     *xml.Decoder

	title   string
	pending filter.BreakType
	first   bool
	inText  bool
}

func (s *source) Next(ctx context.Context) (filter.Segment, error) {
	if s.title != "" {
		title := s.title
		s.title = ""
		return filter.Segment{Text: title, Value: true}, nil
	}

	for {
		if s.dec == nil {
			if err := ctx.Err(); err != nil {
				return filter.Segment{}, err
			}
			if s.next >= len(s.parts) {
				return filter.Segment{}, io.EOF
			}
			if err := s.open(s.parts[s.next]); err != nil {
				return filter.Segment{}, err
			}
			if s.next > 0 {
				s.raise(filter.BreakEOC)
			}
			s.next++
		}

		tok, err := s.dec.Token()
		if errors.Is(err, io.EOF) {
			s.closePart()
			continue
		}
		if err != nil {
			return filter.Segment{}, fmt.Errorf("failed to parse %s: %w", s.parts[s.next-1].Name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			switch {
			case name == s.dialect.paragraph:
				s.raise(filter.BreakEOP)
			case name == s.dialect.text:
				s.inText = true
			case name == s.dialect.tab:
				s.raise(filter.BreakEOW)
			case s.dialect.breaks[name]:
				s.raise(breakKind(t))
			case s.dialect.embeds[name]:
				if err := s.dec.Skip(); err != nil {
					return filter.Segment{}, err
				}
				return filter.Segment{Status: filter.ChunkEmbeddingUnavailable}, nil
			}
		case xml.EndElement:
			if t.Name.Local == s.dialect.text {
				s.inText = false
			}
		case xml.CharData:
			if !s.inText || len(t) == 0 {
				continue
			}
			seg := filter.Segment{Text: string(t), Break: s.pending}
			if s.first {
				seg.Break = filter.BreakNone
				s.first = false
			}
			s.pending = filter.BreakNone
			return seg, nil
		}
	}
}

func (s *source) open(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	s.rc = rc
	s.dec = xml.NewDecoder(rc)
	s.inText = false
	return nil
}

func (s *source) closePart() {
	if s.rc != nil {
		s.rc.Close()
	}
	s.rc, s.dec = nil, nil
}

// Close releases the open part, if any.
func (s *source) Close() error {
	s.closePart()
	return nil
}

func (s *source) raise(b filter.BreakType) {
	if b > s.pending {
		s.pending = b
	}
}

func breakKind(el xml.StartElement) filter.BreakType {
	for _, a := range el.Attr {
		if a.Name.Local == "type" && a.Value == "page" {
			return filter.BreakEOC
		}
	}
	return filter.BreakEOS
}

func pick(files []*zip.File, match func(string) bool) []*zip.File {
	var out []*zip.File
	for _, f := range files {
		if match(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

func slideNumber(name string) int {
	base := strings.TrimSuffix(path.Base(name), ".xml")
	n, err := strconv.Atoi(strings.TrimPrefix(base, "slide"))
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

func coreTitle(files []*zip.File) string {
	for _, f := range files {
		if f.Name != "docProps/core.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return ""
		}
		defer rc.Close()
		var props struct {
			Title string `xml:"title"`
		}
		if err := xml.NewDecoder(rc).Decode(&props); err != nil {
			return ""
		}
		return strings.TrimSpace(props.Title)
	}
	return ""
}

// DocxExtensions and PptxExtensions list the extensions served by each filter.
var (
	DocxExtensions = []string{".docx", ".docm", ".dotx"}
	PptxExtensions = []string{".pptx", ".pptm", ".ppsx"}
)
