package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/feichai0017/filter-reader/pkg/logger"
)

var (
	envOnce sync.Once

	appOnce   sync.Once
	appConfig *Config
	appErr    error
)

// Config is the application configuration.
type Config struct {
	Reader  ReaderConfig  `yaml:"reader"`
	Log     logger.Config `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
	Queue   QueueConfig   `yaml:"queue"`
	Storage StorageConfig `yaml:"storage"`
	OCR     OCRConfig     `yaml:"ocr"`
	Service ServiceConfig `yaml:"service"`
}

type ReaderConfig struct {
	PullSize int    `yaml:"pull_size"`
	Newline  string `yaml:"newline"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type QueueConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Concurrency   int           `yaml:"concurrency"`
	MaxRetry      int           `yaml:"max_retry"`
	Timeout       time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Type string `yaml:"type"`
}

type OCRConfig struct {
	// Engine is tesseract, textract, ollama or none.
	Engine        string       `yaml:"engine"`
	Languages     []string     `yaml:"languages"`
	MinConfidence float64      `yaml:"min_confidence"`
	Preprocess    bool         `yaml:"preprocess"`
	Ollama        OllamaConfig `yaml:"ollama"`
}

type OllamaConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Model         string        `yaml:"model"`
	Prompt        string        `yaml:"prompt"`
	MaxTokens     int           `yaml:"max_tokens"`
	Temperature   float64       `yaml:"temperature"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
}

type ServiceConfig struct {
	MaxFileSize int64         `yaml:"max_file_size"`
	Retention   time.Duration `yaml:"retention"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{PullSize: 8192},
		Log:    logger.DefaultConfig(),
		Server: ServerConfig{Addr: ":8080"},
		Queue: QueueConfig{
			RedisAddr:   "localhost:6379",
			Concurrency: 10,
			MaxRetry:    3,
			Timeout:     10 * time.Minute,
		},
		Storage: StorageConfig{Type: "minio"},
		OCR: OCRConfig{
			Engine:        "tesseract",
			Languages:     []string{"eng"},
			MinConfidence: 60,
			Preprocess:    true,
			Ollama: OllamaConfig{
				Endpoint:      "http://localhost:11434",
				Model:         "llama3.2-vision",
				MaxTokens:     2048,
				MaxConcurrent: 4,
				Timeout:       2 * time.Minute,
			},
		},
		Service: ServiceConfig{
			MaxFileSize: 50 << 20,
			Retention:   24 * time.Hour,
		},
	}
}

// Get loads the configuration once. The file named by CONFIG_FILE, or
// config.yaml in the project root, is optional.
func Get() (*Config, error) {
	appOnce.Do(func() {
		path := os.Getenv("CONFIG_FILE")
		if path == "" {
			path = filepath.Join(rootDir(), "config.yaml")
			if _, err := os.Stat(path); err != nil {
				path = ""
			}
		}
		appConfig, appErr = Load(path)
	})
	return appConfig, appErr
}

// Load reads path (if not empty) over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	loadEnv()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if c.Reader.PullSize <= 0 {
		return fmt.Errorf("reader.pull_size must be positive, got %d", c.Reader.PullSize)
	}
	switch c.Storage.Type {
	case "s3", "minio":
	default:
		return fmt.Errorf("unsupported storage type: %q", c.Storage.Type)
	}
	switch c.OCR.Engine {
	case "tesseract", "textract", "ollama", "none":
	default:
		return fmt.Errorf("unsupported ocr engine: %q", c.OCR.Engine)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Queue.RedisAddr, "REDIS_ADDR")
	setString(&c.Queue.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Storage.Type, "STORAGE_TYPE")
	setString(&c.OCR.Engine, "OCR_ENGINE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Reader.Newline, "READER_NEWLINE")
	setString(&c.OCR.Ollama.Endpoint, "OLLAMA_ENDPOINT")
	setString(&c.OCR.Ollama.Model, "OLLAMA_MODEL")
	if v := os.Getenv("OCR_LANGUAGES"); v != "" {
		c.OCR.Languages = strings.Split(v, "+")
	}

	ints := map[string]*int{
		"REDIS_DB":           &c.Queue.RedisDB,
		"WORKER_CONCURRENCY": &c.Queue.Concurrency,
		"READER_PULL_SIZE":   &c.Reader.PullSize,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// loadEnv loads the project .env file into the environment once.
func loadEnv() {
	envOnce.Do(func() {
		envPath := filepath.Join(rootDir(), ".env")
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: .env file not found at %s, falling back to environment variables", envPath)
		}
	})
}

func rootDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Dir(filepath.Dir(filename))
}
