package contextbuilder

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rafaelmq/docquery-back/internal/domain"
)

func result(documentID, filename, content string, similarity float64) domain.SearchResult {
	return domain.SearchResult{
		DocumentID:       documentID,
		DocumentFilename: filename,
		Content:          content,
		Similarity:       similarity,
	}
}

func TestDeduplicateByDocumentKeepsBestChunkPerDocument(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-a", "contract.pdf", "chunk a1", 0.72),
		result("doc-b", "manual.pdf", "chunk b1", 0.68),
		result("doc-a", "contract.pdf", "chunk a2", 0.91),
		result("doc-b", "manual.pdf", "chunk b2", 0.41),
	}

	deduped := DeduplicateByDocument(results)

	if len(deduped) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(deduped))
	}
	if deduped[0].DocumentID != "doc-a" || deduped[0].Content != "chunk a2" {
		t.Fatalf("expected doc-a best chunk first, got %+v", deduped[0])
	}
	if deduped[1].DocumentID != "doc-b" || deduped[1].Content != "chunk b1" {
		t.Fatalf("expected doc-b best chunk second, got %+v", deduped[1])
	}
}

func TestDeduplicateByDocumentFirstChunkWinsTies(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-a", "contract.pdf", "first", 0.8),
		result("doc-a", "contract.pdf", "second", 0.8),
	}

	deduped := DeduplicateByDocument(results)

	if len(deduped) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(deduped))
	}
	if deduped[0].Content != "first" {
		t.Fatalf("expected first chunk to win the tie, got %q", deduped[0].Content)
	}
}

func TestDeduplicateByDocumentDoesNotMutateInput(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-b", "manual.pdf", "b", 0.5),
		result("doc-a", "contract.pdf", "a", 0.9),
	}
	original := append([]domain.SearchResult(nil), results...)

	_ = DeduplicateByDocument(results)

	if !reflect.DeepEqual(results, original) {
		t.Fatalf("input slice was mutated: %+v", results)
	}
}

func TestBuildContextNumbersBlocksSequentially(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-a", "contract.pdf", "first chunk", 0.9),
		result("doc-b", "", "second chunk", 0.7),
	}

	text := BuildContext(results, BuildOptions{})

	blocks := strings.Split(text, "\n\n")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %q", len(blocks), text)
	}
	if blocks[0] != "[Document 1: contract.pdf]\nfirst chunk" {
		t.Fatalf("unexpected first block: %q", blocks[0])
	}
	if blocks[1] != "[Document 2: untitled document]\nsecond chunk" {
		t.Fatalf("expected placeholder for missing filename, got %q", blocks[1])
	}
}

func TestBuildContextEmptyInput(t *testing.T) {
	if text := BuildContext(nil, BuildOptions{}); text != "" {
		t.Fatalf("expected empty string, got %q", text)
	}
}

func TestBuildContextWithDeduplicationRendersOneBlockPerDocument(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-a", "contract.pdf", "low", 0.5),
		result("doc-a", "contract.pdf", "high", 0.9),
	}

	text := BuildContext(results, BuildOptions{DeduplicateDocuments: true})

	if strings.Count(text, "[Document ") != 1 {
		t.Fatalf("expected a single block after deduplication, got %q", text)
	}
	if !strings.Contains(text, "high") {
		t.Fatalf("expected the best chunk to survive, got %q", text)
	}
}

func TestFilterRelevantKeepsAtOrAboveThreshold(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-a", "a.pdf", "a", 0.9),
		result("doc-b", "b.pdf", "b", 0.5),
		result("doc-c", "c.pdf", "c", 0.3),
		result("doc-d", "d.pdf", "d", 0.41),
	}

	filtered := FilterRelevant(results, DefaultSimilarityThreshold)

	if len(filtered) != 3 {
		t.Fatalf("expected 3 relevant results, got %d", len(filtered))
	}
	if filtered[0].DocumentID != "doc-a" || filtered[1].DocumentID != "doc-b" || filtered[2].DocumentID != "doc-d" {
		t.Fatalf("expected input order preserved, got %+v", filtered)
	}
}

func TestFilterRelevantExactThresholdSurvives(t *testing.T) {
	results := []domain.SearchResult{result("doc-a", "a.pdf", "a", 0.4)}
	if filtered := FilterRelevant(results, 0.4); len(filtered) != 1 {
		t.Fatalf("expected result at the threshold to survive, got %d", len(filtered))
	}
}

func TestUniqueFilenamesPreservesFirstAppearanceOrder(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-a", "contract.pdf", "a1", 0.9),
		result("doc-b", "manual.pdf", "b1", 0.8),
		result("doc-a", "contract.pdf", "a2", 0.7),
		result("doc-c", "", "c1", 0.6),
	}

	names := UniqueFilenames(results)

	expected := []string{"contract.pdf", "manual.pdf", "untitled document"}
	if !reflect.DeepEqual(names, expected) {
		t.Fatalf("expected %v, got %v", expected, names)
	}
}

func TestAverageSimilarity(t *testing.T) {
	results := []domain.SearchResult{
		result("doc-a", "a.pdf", "a", 0.9),
		result("doc-b", "b.pdf", "b", 0.5),
	}
	if avg := AverageSimilarity(results); avg != 0.7 {
		t.Fatalf("expected 0.7, got %f", avg)
	}
	if avg := AverageSimilarity(nil); avg != 0 {
		t.Fatalf("expected 0 for empty input, got %f", avg)
	}
}
