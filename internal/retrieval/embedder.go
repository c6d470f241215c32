package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns text into a dense vector. Production deployments plug a
// model-backed implementation in here; everything downstream only sees
// the vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HashingEmbedder is a deterministic bag-of-words embedder: tokens are
// hashed into a fixed number of buckets and the result is L2-normalized.
// Good enough for local runs and tests where real semantic quality does
// not matter but stable similarity ordering does.
type HashingEmbedder struct {
	dimension int
}

func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashingEmbedder{dimension: dimension}
}

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, e.dimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		vector[hasher.Sum32()%uint32(e.dimension)]++
	}

	var norm float64
	for _, value := range vector {
		norm += float64(value) * float64(value)
	}
	if norm == 0 {
		return vector, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for index := range vector {
		vector[index] *= scale
	}
	return vector, nil
}
