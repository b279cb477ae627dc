// Package storage provides blob storage for uploaded documents with Azure
// Blob Storage and Google Cloud Storage implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/JaimeStill/rtoval/pkg/lifecycle"
)

// System manages blob storage operations and lifecycle coordination.
type System interface {
	// Start registers a startup hook that verifies or creates the container.
	Start(lc *lifecycle.Coordinator) error
	// Upload streams data to a blob at the given key with the specified content type.
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns a stream for the blob at the given key. The caller must close the reader.
	// Returns ErrNotFound if the blob does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob at the given key. Returns ErrNotFound if the blob does not exist.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every blob under prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Exists reports whether a blob exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New creates the storage system for cfg.Provider. Clients are constructed
// here; container checks happen in Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	logger = logger.With("system", "storage", "provider", cfg.Provider)

	switch cfg.Provider {
	case ProviderAzure, "":
		return newAzure(cfg, logger)
	case ProviderGCS:
		return newGCS(context.Background(), cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported storage provider %q", cfg.Provider)
	}
}

// DocumentKey builds the blob key for a document belonging to a session.
func DocumentKey(sessionID, documentID, fileName string) string {
	return path.Join("sessions", sessionID, documentID, path.Base(fileName))
}

// SessionPrefix returns the key prefix under which all of a session's blobs live.
func SessionPrefix(sessionID string) string {
	return path.Join("sessions", sessionID) + "/"
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
