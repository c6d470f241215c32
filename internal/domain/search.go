package domain

// SearchResult is one ranked chunk returned by the vector search
// collaborator. Consumed read-only by the context assembler; the only
// contract relied upon is the total order of Similarity and the
// DocumentID grouping key.
type SearchResult struct {
	DocumentID       string
	DocumentFilename string
	Content          string
	Similarity       float64
}
