// Package tesseract is the ocr.Engine backed by a local Tesseract install.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/feichai0017/filter-reader/internal/filter/ocr"
)

// Engine runs Tesseract through gosseract. A client is created per call so
// one Engine can serve concurrent filters.
type Engine struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode
}

// New returns an engine for languages, defaulting to English.
func New(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{Languages: languages, PageSegMode: gosseract.PSM_AUTO}
}

func (e *Engine) Recognize(ctx context.Context, image []byte) ([]ocr.Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Join(e.Languages, "+")); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(e.PageSegMode); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding boxes: %w", err)
	}

	words := make([]ocr.Word, 0, len(boxes))
	for _, box := range boxes {
		words = append(words, ocr.Word{
			Text:       box.Word,
			Confidence: box.Confidence,
			Block:      box.BlockNum,
			Paragraph:  box.ParNum,
			Line:       box.LineNum,
		})
	}
	return words, nil
}
