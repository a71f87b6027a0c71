// Package builtin registers the filters that need no external services.
package builtin

import (
	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/filter/html"
	"github.com/feichai0017/filter-reader/internal/filter/ooxml"
	"github.com/feichai0017/filter-reader/internal/filter/pdf"
	"github.com/feichai0017/filter-reader/internal/filter/text"
)

// Register installs the text, HTML, PDF and OOXML filters into reg.
func Register(reg *filter.Registry) {
	reg.Register(text.New, text.Extensions...)
	reg.Register(html.New, html.Extensions...)
	reg.Register(pdf.New, pdf.Extensions...)
	reg.Register(ooxml.NewDocx, ooxml.DocxExtensions...)
	reg.Register(ooxml.NewPptx, ooxml.PptxExtensions...)
}

// NewRegistry returns a registry holding the builtin filters.
func NewRegistry() *filter.Registry {
	reg := filter.NewRegistry(nil)
	Register(reg)
	return reg
}
