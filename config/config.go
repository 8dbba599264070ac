package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"clinical-annotator/storage"

	"github.com/joho/godotenv"
)

// Cfg holds all runtime configuration loaded from environment variables.
type Cfg struct {
	// Server
	ListenAddr string // e.g. :8080
	GinMode    string // debug, release or test

	// Logging
	LogLevel string // debug, info, warn, error
	LogJSON  bool   // LOG_JSON=true switches to production JSON output

	// Uploads larger than this are rejected
	MaxUploadBytes int64

	// Sessions unused for longer than this are dropped; 0 keeps them
	SessionIdleTimeout time.Duration

	Storage storage.StorageConfig
}

// DefaultMaxUploadBytes caps uploaded annotation files at 10MB
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// DefaultSessionIdleTimeout drops annotation sessions idle for half a day
const DefaultSessionIdleTimeout = 12 * time.Hour

// Load reads .env (if present) then environment variables and returns Cfg.
func Load(envFiles ...string) (*Cfg, error) {
	// Best-effort: a missing .env is not an error
	_ = godotenv.Load(envFiles...)

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	logLevel := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}

	maxUpload := int64(DefaultMaxUploadBytes)
	if raw := strings.TrimSpace(os.Getenv("MAX_UPLOAD_BYTES")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES %q", raw)
		}
		maxUpload = n
	}

	idleTimeout := DefaultSessionIdleTimeout
	if raw := strings.TrimSpace(os.Getenv("SESSION_IDLE_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid SESSION_IDLE_TIMEOUT %q", raw)
		}
		idleTimeout = d
	}

	cfg := &Cfg{
		ListenAddr:         ":" + port,
		GinMode:            strings.TrimSpace(os.Getenv("GIN_MODE")),
		LogLevel:           logLevel,
		LogJSON:            parseBool(os.Getenv("LOG_JSON")),
		MaxUploadBytes:     maxUpload,
		SessionIdleTimeout: idleTimeout,
		Storage:            storage.ConfigFromEnv(),
	}

	switch cfg.Storage.Type {
	case storage.StorageTypeLocal:
	case storage.StorageTypeS3:
		if cfg.Storage.S3Bucket == "" {
			return nil, fmt.Errorf("AWS_S3_BUCKET environment variable is required for S3 storage")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_TYPE: %s", cfg.Storage.Type)
	}

	return cfg, nil
}

func parseBool(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "1" || strings.EqualFold(raw, "true")
}
