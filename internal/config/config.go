package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host            string
	Port            string
	RequestTimeout  time.Duration
	MaxUploadSize   int64
	MaxImageSide    int
	ScanConcurrency int

	// External fallback detection service.
	FallbackURL     string
	FallbackTimeout time.Duration

	// ML detector (ONNX). An empty model path disables the ML level.
	MLModelPath  string
	MLConfidence float64
	OnnxLibPath  string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// MLEnabled reports whether a detector model has been configured.
func (c *Config) MLEnabled() bool {
	return strings.TrimSpace(c.MLModelPath) != ""
}

func LoadFromEnv() (*Config, error) {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Host:            getEnvOrDefault("HOST", "0.0.0.0"),
		Port:            getEnvOrDefault("PORT", "8080"),
		RequestTimeout:  parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		MaxUploadSize:   parseIntOrDefault("MAX_UPLOAD_SIZE", 10*1024*1024), // 10MB
		MaxImageSide:    int(parseIntOrDefault("MAX_IMAGE_SIDE", 2048)),
		ScanConcurrency: int(parseIntOrDefault("SCAN_CONCURRENCY", 0)), // 0 = NumCPU
		FallbackURL:     getEnvOrDefault("FALLBACK_URL", "http://127.0.0.1:8008/qr/hybrid-fallback"),
		FallbackTimeout: parseDurationOrDefault("FALLBACK_TIMEOUT", 30*time.Second),
		MLModelPath:     os.Getenv("ML_MODEL_PATH"),
		MLConfidence:    parseFloatOrDefault("ML_CONFIDENCE", 0.5),
		OnnxLibPath:     os.Getenv("ONNX_LIB_PATH"),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_SIZE must be > 0 (got %d)", cfg.MaxUploadSize)
	}
	if cfg.MaxImageSide < 64 {
		return nil, fmt.Errorf("MAX_IMAGE_SIDE must be >= 64 (got %d)", cfg.MaxImageSide)
	}
	if cfg.RequestTimeout <= 0 || cfg.FallbackTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fallback=%s)",
			cfg.RequestTimeout, cfg.FallbackTimeout)
	}
	if cfg.MLConfidence <= 0 || cfg.MLConfidence >= 1 {
		return nil, fmt.Errorf("ML_CONFIDENCE must be in (0, 1) (got %f)", cfg.MLConfidence)
	}
	if cfg.FallbackURL != "" && !strings.HasPrefix(cfg.FallbackURL, "http") {
		return nil, fmt.Errorf("invalid FALLBACK_URL: %q", cfg.FallbackURL)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
