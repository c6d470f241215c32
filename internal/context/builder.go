package contextbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rafaelmq/docquery-back/internal/domain"
)

// DefaultSimilarityThreshold is the floor below which a retrieved chunk
// is considered noise for answer composition.
const DefaultSimilarityThreshold = 0.4

const unnamedDocument = "untitled document"

// BuildOptions controls context formatting. Deduplication is opt-in:
// answer drafting wants every supporting chunk, document-listing style
// queries want one entry per document.
type BuildOptions struct {
	DeduplicateDocuments bool
}

// DeduplicateByDocument keeps, for each document, only the chunk with the
// highest similarity (first encountered wins ties) and re-sorts the
// survivors by similarity descending. Deterministic for a given input
// order.
func DeduplicateByDocument(results []domain.SearchResult) []domain.SearchResult {
	if len(results) <= 1 {
		return append([]domain.SearchResult(nil), results...)
	}

	best := make(map[string]domain.SearchResult, len(results))
	order := make([]string, 0, len(results))
	for _, result := range results {
		existing, seen := best[result.DocumentID]
		if !seen {
			best[result.DocumentID] = result
			order = append(order, result.DocumentID)
			continue
		}
		if result.Similarity > existing.Similarity {
			best[result.DocumentID] = result
		}
	}

	deduped := make([]domain.SearchResult, 0, len(order))
	for _, documentID := range order {
		deduped = append(deduped, best[documentID])
	}
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Similarity > deduped[j].Similarity
	})
	return deduped
}

// BuildContext renders results into the grounding text handed to the
// language model: one numbered block per chunk, blank line between
// blocks, empty string for empty input.
func BuildContext(results []domain.SearchResult, opts BuildOptions) string {
	if opts.DeduplicateDocuments {
		results = DeduplicateByDocument(results)
	}
	if len(results) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(results))
	for index, result := range results {
		filename := strings.TrimSpace(result.DocumentFilename)
		if filename == "" {
			filename = unnamedDocument
		}
		blocks = append(blocks, fmt.Sprintf("[Document %d: %s]\n%s", index+1, filename, result.Content))
	}
	return strings.Join(blocks, "\n\n")
}

// UniqueFilenames returns the distinct filenames in order of first
// appearance, substituting a placeholder where the filename is absent.
func UniqueFilenames(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	names := make([]string, 0, len(results))
	for _, result := range results {
		filename := strings.TrimSpace(result.DocumentFilename)
		if filename == "" {
			filename = unnamedDocument
		}
		if _, exists := seen[filename]; exists {
			continue
		}
		seen[filename] = struct{}{}
		names = append(names, filename)
	}
	return names
}

// AverageSimilarity is the arithmetic mean of similarities, zero on
// empty input.
func AverageSimilarity(results []domain.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	total := 0.0
	for _, result := range results {
		total += result.Similarity
	}
	return total / float64(len(results))
}

// FilterRelevant keeps results at or above the threshold, preserving
// input order. A non-positive threshold falls back to the default.
func FilterRelevant(results []domain.SearchResult, threshold float64) []domain.SearchResult {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	filtered := make([]domain.SearchResult, 0, len(results))
	for _, result := range results {
		if result.Similarity >= threshold {
			filtered = append(filtered, result)
		}
	}
	return filtered
}
