package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rafaelmq/docquery-back/internal/domain"
)

// DocumentChunk is one ingested piece of a document, ready for indexing.
type DocumentChunk struct {
	DocumentID string
	Filename   string
	Content    string
}

type indexedChunk struct {
	chunk  DocumentChunk
	vector []float32
}

// MemoryIndex is an in-process vector index used for local runs and
// tests. It satisfies the retriever contract the context assembler
// consumes; a managed vector store replaces it in production.
type MemoryIndex struct {
	embedder Embedder

	mu    sync.RWMutex
	items []indexedChunk
}

func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder}
}

// IndexChunks embeds and stores chunks, replacing any previously indexed
// chunks of the same documents so re-ingestion stays idempotent.
func (x *MemoryIndex) IndexChunks(ctx context.Context, chunks []DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embedded := make([]indexedChunk, 0, len(chunks))
	replaced := make(map[string]struct{}, 1)
	for _, chunk := range chunks {
		vector, err := x.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return fmt.Errorf("embed chunk for document %s: %w", chunk.DocumentID, err)
		}
		embedded = append(embedded, indexedChunk{chunk: chunk, vector: vector})
		replaced[chunk.DocumentID] = struct{}{}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	kept := x.items[:0]
	for _, item := range x.items {
		if _, drop := replaced[item.chunk.DocumentID]; !drop {
			kept = append(kept, item)
		}
	}
	x.items = append(kept, embedded...)
	return nil
}

func (x *MemoryIndex) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	queryVector, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	x.mu.RLock()
	results := make([]domain.SearchResult, 0, len(x.items))
	for _, item := range x.items {
		results = append(results, domain.SearchResult{
			DocumentID:       item.chunk.DocumentID,
			DocumentFilename: item.chunk.Filename,
			Content:          item.chunk.Content,
			Similarity:       dot(queryVector, item.vector),
		})
	}
	x.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.items)
}

// Vectors are normalized by the embedder, so the dot product is the
// cosine similarity.
func dot(a, b []float32) float64 {
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	var sum float64
	for index := 0; index < length; index++ {
		sum += float64(a[index]) * float64(b[index])
	}
	return sum
}
