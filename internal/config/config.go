package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/tablegest/internal/extractor"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Table storage
	DBPath string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Extraction defaults
	AutoSpan        bool
	AutoPad         bool
	ExtractContext  bool
	ExtractorConfig string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("TABLEGEST_API_KEY"),
		DBPath: envOr("TABLEGEST_DB_PATH", "tablegest.db"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		AutoSpan:        envBool("AUTO_SPAN", true),
		AutoPad:         envBool("AUTO_PAD", true),
		ExtractContext:  envBool("EXTRACT_CONTEXT", true),
		ExtractorConfig: os.Getenv("EXTRACTOR_CONFIG"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("TABLEGEST_API_KEY is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("TABLEGEST_DB_PATH is required")
	}
	return nil
}

// ExtractOptions are the pass toggles used when a request does not set its own.
func (c Config) ExtractOptions() extractor.Options {
	return extractor.Options{
		AutoSpan:       c.AutoSpan,
		AutoPad:        c.AutoPad,
		ExtractContext: c.ExtractContext,
	}
}

// Extractor returns the tag configuration from EXTRACTOR_CONFIG, or the
// defaults when it is unset.
func (c Config) Extractor() (extractor.Config, error) {
	if c.ExtractorConfig == "" {
		return extractor.DefaultConfig(), nil
	}
	return extractor.LoadConfig(c.ExtractorConfig)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
