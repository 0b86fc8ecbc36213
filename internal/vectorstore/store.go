// Package vectorstore persists chunk embeddings and answers nearest-neighbour
// queries. Callers depend on VectorStore only, so the backend can be swapped
// through configuration.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/models"
)

var (
	ErrLengthMismatch    = errors.New("vectors and chunks length mismatch")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// VectorStore is the capability set every index backend provides.
type VectorStore interface {
	// Add appends vectors[i] paired with chunks[i].
	Add(ctx context.Context, vectors [][]float32, chunks []models.DocumentChunk) error
	// Search returns up to k results ordered by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]models.RetrievalResult, error)
	// Save persists the index and its metadata together.
	Save() error
	// Len reports the number of stored chunks.
	Len() int
}

// Reloader is implemented by backends that can re-read persisted state written
// by another process.
type Reloader interface {
	Load() error
}

// Open builds the backend named by cfg.VectorStore and loads any persisted data.
func Open(cfg *config.Config, dim int) (VectorStore, error) {
	switch cfg.VectorStore {
	case "flat", "faiss":
		return OpenFlatStore(dim, cfg.VectorStorePath)
	case "chroma":
		return NewChromemStore(cfg.ChromaPath, dim)
	default:
		return nil, fmt.Errorf("unsupported vector store %q", cfg.VectorStore)
	}
}

func checkBatch(dim int, vectors [][]float32, chunks []models.DocumentChunk) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: %d vectors, %d chunks", ErrLengthMismatch, len(vectors), len(chunks))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dims, index has %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
