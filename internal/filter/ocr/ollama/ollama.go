// Package ollama recognizes image text with a vision model served by Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/feichai0017/filter-reader/internal/filter/ocr"
)

// DefaultPrompt asks the model for a plain transcription.
const DefaultPrompt = "Transcribe all text in this image exactly as written. " +
	"Keep line breaks, separate paragraphs with a blank line and output nothing else."

// generateResponse 定义 Ollama API 响应结构
type generateResponse struct {
	Response  string `json:"response"`
	Model     string `json:"model"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// Config configures the client.
type Config struct {
	Endpoint      string
	Model         string
	Prompt        string
	Temperature   float64
	MaxTokens     int
	MaxConcurrent int
	Timeout       time.Duration
}

// Engine is an ocr.Engine that sends each image to /api/generate.
type Engine struct {
	cfg        Config
	sem        *semaphore.Weighted
	httpClient *http.Client
}

// New creates an engine. Zero values in cfg fall back to defaults.
func New(cfg Config) *Engine {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Engine{
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Recognize returns the transcription as one word per whitespace-separated
// token. Blank lines in the answer start new paragraphs.
func (e *Engine) Recognize(ctx context.Context, image []byte) ([]ocr.Word, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer e.sem.Release(1)

	text, err := e.generate(ctx, image)
	if err != nil {
		return nil, err
	}
	return words(text), nil
}

func (e *Engine) generate(ctx context.Context, image []byte) (string, error) {
	body := generateRequest{
		Model:  e.cfg.Model,
		Prompt: e.cfg.Prompt,
		Images: []string{base64.StdEncoding.EncodeToString(image)},
		Stream: false,
		Options: map[string]any{
			"temperature": e.cfg.Temperature,
		},
	}
	if e.cfg.MaxTokens > 0 {
		body.Options["num_predict"] = e.cfg.MaxTokens
	}
	reqData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.cfg.Endpoint, "/")+"/api/generate", bytes.NewReader(reqData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}
	return result.Response, nil
}

// Close drops idle connections.
func (e *Engine) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func words(text string) []ocr.Word {
	var out []ocr.Word
	para, line := 0, 0
	blank := false
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		fields := strings.Fields(l)
		if len(fields) == 0 {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			para++
		}
		blank = false
		line++
		for _, f := range fields {
			out = append(out, ocr.Word{Text: f, Confidence: 100, Paragraph: para, Line: line})
		}
	}
	return out
}

var _ ocr.Engine = (*Engine)(nil)
