package vectorstore

import (
	"fmt"
	"path/filepath"

	"github.com/archon-run/archon/internal/vectorstore/embeddings"
)

// New builds a Store for the given backend name ("memory" or "sqlite").
// An empty backend name yields an in-process MemoryStore; any other
// unrecognized name is an error.
func New(backend, path string, embedder embeddings.Provider) (Store, error) {
	switch backend {
	case "sqlite":
		dbPath := filepath.Join(path, "vectorstore.db")
		return NewSQLiteStore(dbPath, embedder)
	case "memory", "":
		return NewMemoryStore(embedder), nil
	default:
		return nil, fmt.Errorf("vectorstore: unknown backend %q", backend)
	}
}
