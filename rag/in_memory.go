package rag

import (
	"context"
	"math"
	"sort"
	"sync"
)

// InMemoryVectorStore is a process-local VectorStore ranking stored documents
// by cosine similarity. Linear scan; suited to tests and small corpora.
type InMemoryVectorStore struct {
	mu   sync.RWMutex
	docs []storedDoc
}

type storedDoc struct {
	id      string
	content string
	vector  []float64
}

// NewInMemoryVectorStore constructs an empty vector store.
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{}
}

// Add stores a document with its embedding vector.
func (s *InMemoryVectorStore) Add(id, content string, vector []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, storedDoc{id: id, content: content, vector: vector})
}

// Search implements VectorStore. Results are sorted by descending cosine
// similarity and truncated to topK.
func (s *InMemoryVectorStore) Search(_ context.Context, vector []float64, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]SearchResult, 0, len(s.docs))
	for _, d := range s.docs {
		results = append(results, SearchResult{ID: d.id, Content: d.content, Score: cosine(vector, d.vector)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
