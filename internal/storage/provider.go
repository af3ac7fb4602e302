// Package storage enumerates and reads the documents of a vault.
package storage

import (
	"context"

	"github.com/starford/sowilo/internal/models"
)

// Provider is the read-only view of a vault used by the index builder.
type Provider interface {
	// Walk returns every indexable document, ordered by relative path.
	Walk(ctx context.Context) ([]models.FileEntry, error)
	// Read returns the raw bytes of the file at rel (relative to vault root).
	Read(rel string) ([]byte, error)
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
