// Package textract is the ocr.Engine backed by AWS Textract.
package textract

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/filter-reader/config"
	"github.com/feichai0017/filter-reader/internal/filter/ocr"
)

// API is the subset of the Textract client used by Engine.
type API interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// Engine recognizes text with DetectDocumentText. Each LINE block becomes one
// word on its own line; each PAGE block starts a new layout block.
type Engine struct {
	client API
}

// NewEngine wraps an existing client.
func NewEngine(client API) *Engine {
	return &Engine{client: client}
}

// NewClient builds a Textract client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS chain applies.
func NewClient(ctx context.Context, cfg *config.TextractConfig) (*textract.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func (e *Engine) Recognize(ctx context.Context, image []byte) ([]ocr.Word, error) {
	out, err := e.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect document text: %w", err)
	}

	var words []ocr.Word
	page, line := 0, 0
	for _, block := range out.Blocks {
		switch block.BlockType {
		case types.BlockTypePage:
			page++
			line = 0
		case types.BlockTypeLine:
			if block.Text == nil {
				continue
			}
			line++
			w := ocr.Word{Text: *block.Text, Block: page, Line: line}
			if block.Confidence != nil {
				w.Confidence = float64(*block.Confidence)
			}
			words = append(words, w)
		}
	}
	return words, nil
}
