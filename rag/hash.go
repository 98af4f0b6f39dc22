package rag

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashingEmbedder is a deterministic, dependency-free EmbeddingProvider:
// each token is hashed into one of Dim buckets and the bucket counts form
// the vector. Retrieval quality is limited to lexical overlap, which is
// enough for tests and local demos; production deployments use a real
// embedding API.
type HashingEmbedder struct {
	Dim int
}

// NewHashingEmbedder constructs an embedder with the given dimensionality.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim < 1 {
		dim = 256
	}
	return &HashingEmbedder{Dim: dim}
}

// Embed implements EmbeddingProvider. The output is L2-normalized so cosine
// similarity reduces to a dot product.
func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if tok == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%e.Dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
