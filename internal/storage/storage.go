// Package storage stores generated export files.
//
// Two backends implement Storage: LocalStorage writes under a directory and is
// used in development, R2Storage writes to a Cloudflare R2 bucket through the
// S3 API. Both refuse keys that try to leave their root.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Put stores data at key. Without opts.Overwrite an existing key yields ErrKeyExists.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a link to key. Backends that can sign links honour expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType defaults to a type derived from the key's extension.
	ContentType string

	// MaxSize rejects bodies larger than this many bytes. Zero means no limit.
	MaxSize int64

	Overwrite bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// LocalConfig configures LocalStorage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config configures R2Storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL serves objects from a custom domain. When empty every URL is presigned.
	PublicURL string

	// Region defaults to "auto".
	Region string

	// Endpoint overrides the account endpoint. Used by tests.
	Endpoint string
}

// Config selects and configures a backend.
type Config struct {
	Provider string
	Local    LocalConfig
	R2       R2Config
}

// New builds the backend named by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// ExportKey returns the key for an export of a search history entry.
// Format: exports/{userID}/{historyID}/{exportID}.{format}
func ExportKey(userID, historyID uuid.UUID, format string) string {
	return fmt.Sprintf("exports/%s/%s/%s.%s", userID, historyID, uuid.New(), format)
}

// ContentTypeFor derives a MIME type from the key's extension.
func ContentTypeFor(key string) string {
	switch ext := strings.ToLower(path.Ext(key)); ext {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	case "":
		return "application/octet-stream"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// validateKey rejects empty keys and keys with parent-directory segments.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
