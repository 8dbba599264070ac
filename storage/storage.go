package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a named document file does not exist
var ErrNotFound = errors.New("file not found")

// Storage interface for document file operations
type Storage interface {
	// Read opens a stored file by name
	Read(ctx context.Context, name string) (io.ReadCloser, error)

	// Write stores data under name, replacing any existing file
	Write(ctx context.Context, name string, data io.Reader) error

	// Exists reports whether a file is stored under name
	Exists(ctx context.Context, name string) (bool, error)

	// Delete removes a file by name
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored JSON documents
	List(ctx context.Context) ([]string, error)
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Prefix     string // For S3 storage
	S3Region     string // For S3 storage
	S3Endpoint   string // Optional, for S3-compatible services
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("S3 bucket is required for S3 storage")
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ConfigFromEnv builds a StorageConfig from environment variables
func ConfigFromEnv() StorageConfig {
	storageType := os.Getenv("STORAGE_TYPE")
	if storageType == "" {
		storageType = "local" // Default to local for development
	}

	cfg := StorageConfig{
		Type: StorageType(storageType),
	}

	cfg.LocalPath = os.Getenv("STORAGE_LOCAL_PATH")
	if cfg.LocalPath == "" {
		cfg.LocalPath = "./data"
	}

	cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
	cfg.S3Prefix = os.Getenv("AWS_S3_PREFIX")
	cfg.S3Endpoint = os.Getenv("AWS_S3_ENDPOINT")
	cfg.S3Region = os.Getenv("AWS_REGION")
	if cfg.S3Region == "" {
		cfg.S3Region = "us-east-1" // Default region
	}
	cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	return cfg
}

// SanitizeName reduces an uploaded filename to a single safe path element
func SanitizeName(filename string) (string, error) {
	name := strings.ReplaceAll(filename, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == "/" || name == ".." || name == "" {
		return "", fmt.Errorf("invalid file name: %q", filename)
	}
	return name, nil
}
