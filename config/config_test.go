package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.Reader.PullSize)
	assert.Equal(t, "tesseract", cfg.OCR.Engine)
	assert.Equal(t, 24*time.Hour, cfg.Service.Retention)
	assert.Equal(t, "http://localhost:11434", cfg.OCR.Ollama.Endpoint)
}

func TestLoadOllama(t *testing.T) {
	path := writeConfig(t, `
ocr:
  engine: ollama
  ollama:
    model: llava
    max_concurrent: 1
    timeout: 45s
`)
	t.Setenv("OLLAMA_ENDPOINT", "http://gpu:11434")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.OCR.Engine)
	assert.Equal(t, "llava", cfg.OCR.Ollama.Model)
	assert.Equal(t, "http://gpu:11434", cfg.OCR.Ollama.Endpoint)
	assert.Equal(t, 1, cfg.OCR.Ollama.MaxConcurrent)
	assert.Equal(t, 45*time.Second, cfg.OCR.Ollama.Timeout)
	assert.Equal(t, 2048, cfg.OCR.Ollama.MaxTokens, "unset keys keep defaults")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
reader:
  pull_size: 512
  newline: "\r\n"
queue:
  redis_addr: redis:6379
  timeout: 30s
storage:
  type: s3
ocr:
  engine: textract
  languages: [eng, deu]
`)
	t.Setenv("REDIS_DB", "4")
	t.Setenv("OCR_LANGUAGES", "fra+eng")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Reader.PullSize)
	assert.Equal(t, "\r\n", cfg.Reader.Newline)
	assert.Equal(t, "redis:6379", cfg.Queue.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Queue.Timeout)
	assert.Equal(t, 4, cfg.Queue.RedisDB)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, []string{"fra", "eng"}, cfg.OCR.Languages)
	assert.Equal(t, 10, cfg.Queue.Concurrency, "unset keys keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "reader:\n  pull_size: -1\n"))
	assert.ErrorContains(t, err, "pull_size")

	_, err = Load(writeConfig(t, "storage:\n  type: ftp\n"))
	assert.ErrorContains(t, err, "storage type")

	t.Setenv("READER_PULL_SIZE", "lots")
	_, err = Load("")
	assert.ErrorContains(t, err, "READER_PULL_SIZE")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
