package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"construction-safety-assistant/internal/ai"
	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/internal/logger"
	"construction-safety-assistant/internal/vectorstore"
	"construction-safety-assistant/models"
)

const embedBatchSize = 64

// Retriever embeds queries and documents with one model and reads and writes one index.
type Retriever struct {
	embedder ai.Embedder
	store    vectorstore.VectorStore
	writeMu  sync.Mutex
}

func NewRetriever(embedder ai.Embedder, store vectorstore.VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve returns the k chunks nearest to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievalResult, error) {
	if r.store.Len() == 0 {
		return nil, nil
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := r.store.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return results, nil
}

// AddDocuments embeds chunks in batches, appends them and persists the index.
// Reloadable backends are re-read first so chunks saved by another process
// survive, and re-read again when the save fails so a retried batch is not
// indexed twice.
func (r *Retriever) AddDocuments(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := r.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if _, err := r.Reload(); err != nil {
		return err
	}
	if err := r.store.Add(ctx, vectors, chunks); err != nil {
		return fmt.Errorf("adding to index: %w", err)
	}
	if err := r.store.Save(); err != nil {
		if _, rerr := r.Reload(); rerr != nil {
			logger.Error("Failed to roll back unsaved chunks", "error", rerr)
		}
		return fmt.Errorf("saving index: %w", err)
	}
	return nil
}

// IndexSize reports how many chunks the index holds.
func (r *Retriever) IndexSize() int {
	return r.store.Len()
}

// Reload re-reads the persisted index when the backend supports it.
func (r *Retriever) Reload() (bool, error) {
	rl, ok := r.store.(vectorstore.Reloader)
	if !ok {
		return false, nil
	}
	if err := rl.Load(); err != nil {
		return true, fmt.Errorf("reloading index: %w", err)
	}
	return true, nil
}

// OpenRetriever builds the configured embedder and opens the configured index.
// The returned close func releases embedder resources.
func OpenRetriever(ctx context.Context, cfg *config.Config) (*Retriever, func(), error) {
	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating embedder: %w", err)
	}
	closeFn := func() {
		if c, ok := embedder.(io.Closer); ok {
			c.Close()
		}
	}

	store, err := vectorstore.Open(cfg, embedder.Dimension())
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("opening vector store: %w", err)
	}
	return NewRetriever(embedder, store), closeFn, nil
}
