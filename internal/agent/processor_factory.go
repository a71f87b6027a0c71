// Package agent assembles the filter registry used by the server, worker and
// CLI from configuration.
package agent

import (
	"context"
	"fmt"

	"github.com/feichai0017/filter-reader/config"
	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/filter/builtin"
	"github.com/feichai0017/filter-reader/internal/filter/ocr"
	"github.com/feichai0017/filter-reader/internal/filter/ocr/ollama"
	"github.com/feichai0017/filter-reader/internal/filter/ocr/tesseract"
	"github.com/feichai0017/filter-reader/internal/filter/textract"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

// NewFilterRegistry returns a registry with the builtin filters and, unless
// ocr.engine is "none", an OCR filter for images.
func NewFilterRegistry(ctx context.Context, cfg *config.Config, log logger.Logger) (*filter.Registry, error) {
	reg := filter.NewRegistry(log.Named("filters"))
	builtin.Register(reg)

	engine, err := newEngine(ctx, cfg.OCR)
	if err != nil {
		return nil, err
	}
	if engine != nil {
		opts := []ocr.Option{
			ocr.WithMinConfidence(cfg.OCR.MinConfidence),
			ocr.WithLogger(log),
		}
		// Remote engines do their own image normalisation.
		if cfg.OCR.Preprocess && cfg.OCR.Engine == "tesseract" {
			opts = append(opts, ocr.WithPreprocessors(ocr.DefaultPreprocessors()...))
		}
		reg.Register(ocr.New(engine, opts...), ocr.Extensions...)
	}

	log.Info("Filter registry ready",
		logger.String("ocrEngine", cfg.OCR.Engine),
		logger.Any("extensions", reg.Extensions()),
	)
	return reg, nil
}

func newEngine(ctx context.Context, cfg config.OCRConfig) (ocr.Engine, error) {
	switch cfg.Engine {
	case "none", "":
		return nil, nil
	case "tesseract":
		return tesseract.New(cfg.Languages...), nil
	case "textract":
		client, err := textract.NewClient(ctx, config.GetTextractConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create textract client: %w", err)
		}
		return textract.NewEngine(client), nil
	case "ollama":
		return ollama.New(ollama.Config{
			Endpoint:      cfg.Ollama.Endpoint,
			Model:         cfg.Ollama.Model,
			Prompt:        cfg.Ollama.Prompt,
			Temperature:   cfg.Ollama.Temperature,
			MaxTokens:     cfg.Ollama.MaxTokens,
			MaxConcurrent: cfg.Ollama.MaxConcurrent,
			Timeout:       cfg.Ollama.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported ocr engine: %s", cfg.Engine)
	}
}
