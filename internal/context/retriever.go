package contextbuilder

import (
	"context"

	"github.com/rafaelmq/docquery-back/internal/domain"
)

// Retriever is the vector search collaborator. The assembler relies only
// on the Similarity ordering and the DocumentID grouping key of what it
// returns; ranking internals stay on the other side of this interface.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)
}
