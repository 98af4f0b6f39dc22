// Package rag provides the retrieval collaborator contracts (embedding
// generation and vector similarity search) and the Retriever that composes
// them: embed the query, search the store, concatenate the top-K chunks into
// evidence text for the policy agent.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmbedding wraps embedding provider failures.
var ErrEmbedding = errors.New("embedding failed")

// EmbeddingProvider converts text into a dense vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SearchResult is a retrieved chunk with a similarity score.
type SearchResult struct {
	ID      string
	Content string
	Score   float64
}

// VectorStore performs similarity search over stored vectors.
type VectorStore interface {
	Search(ctx context.Context, vector []float64, topK int) ([]SearchResult, error)
}

// Retriever composes embedding and vector search into one retrieval call.
type Retriever struct {
	embedder EmbeddingProvider
	store    VectorStore
	topK     int
}

// NewRetriever constructs a Retriever returning up to topK chunks per query.
func NewRetriever(embedder EmbeddingProvider, store VectorStore, topK int) *Retriever {
	if topK < 1 {
		topK = 3
	}
	return &Retriever{embedder: embedder, store: store, topK: topK}
}

// Retrieve embeds the query, searches the store and concatenates the ranked
// chunks into a single evidence string. An empty result set yields "".
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	results, err := r.store.Search(ctx, vec, r.topK)
	if err != nil {
		return "", fmt.Errorf("vector search: %w", err)
	}
	parts := make([]string, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}
