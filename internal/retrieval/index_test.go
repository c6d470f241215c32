package retrieval

import (
	"context"
	"math"
	"testing"
)

func chunk(documentID, filename, content string) DocumentChunk {
	return DocumentChunk{DocumentID: documentID, Filename: filename, Content: content}
}

func TestHashingEmbedderIsDeterministicAndNormalized(t *testing.T) {
	embedder := NewHashingEmbedder(64)

	first, err := embedder.Embed(context.Background(), "refund policy for contracts")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := embedder.Embed(context.Background(), "refund policy for contracts")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	var norm float64
	for index := range first {
		if first[index] != second[index] {
			t.Fatalf("embedding not deterministic at %d", index)
		}
		norm += float64(first[index]) * float64(first[index])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
}

func TestHashingEmbedderEmptyText(t *testing.T) {
	embedder := NewHashingEmbedder(16)
	vector, err := embedder.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for _, value := range vector {
		if value != 0 {
			t.Fatalf("expected zero vector for empty text")
		}
	}
}

func TestSearchRanksByOverlap(t *testing.T) {
	index := NewMemoryIndex(NewHashingEmbedder(256))
	err := index.IndexChunks(context.Background(), []DocumentChunk{
		chunk("doc-1", "refunds.pdf", "refund policy deadlines and conditions"),
		chunk("doc-2", "onboarding.pdf", "employee onboarding checklist"),
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	results, err := index.Search(context.Background(), "refund policy", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].DocumentID != "doc-1" {
		t.Fatalf("expected refund document ranked first, got %s", results[0].DocumentID)
	}
	if results[0].Similarity <= results[1].Similarity {
		t.Fatalf("expected strictly better similarity for matching document")
	}
	if results[0].DocumentFilename != "refunds.pdf" {
		t.Fatalf("expected filename carried through, got %q", results[0].DocumentFilename)
	}
}

func TestSearchHonorsLimit(t *testing.T) {
	index := NewMemoryIndex(NewHashingEmbedder(64))
	err := index.IndexChunks(context.Background(), []DocumentChunk{
		chunk("doc-1", "a.pdf", "alpha beta"),
		chunk("doc-2", "b.pdf", "gamma delta"),
		chunk("doc-3", "c.pdf", "epsilon zeta"),
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	results, err := index.Search(context.Background(), "alpha", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected limit applied, got %d", len(results))
	}
}

func TestIndexChunksReplacesSameDocument(t *testing.T) {
	index := NewMemoryIndex(NewHashingEmbedder(64))
	ctx := context.Background()

	if err := index.IndexChunks(ctx, []DocumentChunk{
		chunk("doc-1", "a.pdf", "old content one"),
		chunk("doc-1", "a.pdf", "old content two"),
	}); err != nil {
		t.Fatalf("first index: %v", err)
	}
	if err := index.IndexChunks(ctx, []DocumentChunk{
		chunk("doc-1", "a.pdf", "new content"),
	}); err != nil {
		t.Fatalf("reindex: %v", err)
	}

	if index.Len() != 1 {
		t.Fatalf("expected re-ingestion to replace old chunks, got %d", index.Len())
	}
	results, err := index.Search(ctx, "content", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "new content" {
		t.Fatalf("expected only the new chunk, got %+v", results)
	}
}
