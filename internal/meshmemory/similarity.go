package meshmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// SimilarityPoint is a record stored in a similarity index.
type SimilarityPoint struct {
	ID        uuid.UUID
	Embedding EmbeddingVector
	Metadata  map[string]any
	Tags      []string
}

// SimilarityQuery parameterizes a similarity search.
type SimilarityQuery struct {
	Embedding EmbeddingVector
	TopK      int
	// Tags restricts results to points carrying every listed tag.
	Tags []string
}

// SimilarityMatch is a single similarity search result, ordered by
// descending Score.
type SimilarityMatch struct {
	ID       uuid.UUID
	Score    float32
	Metadata map[string]any
	Tags     []string
}

// SimilarityIndex indexes embeddings for nearest-neighbor recall.
type SimilarityIndex interface {
	// Upsert inserts or replaces a point.
	Upsert(ctx context.Context, point SimilarityPoint) error
	// Remove deletes a point if present.
	Remove(ctx context.Context, id uuid.UUID) error
	// Query executes a similarity search, returning matches ordered by
	// descending score and truncated to TopK.
	Query(ctx context.Context, query SimilarityQuery) ([]SimilarityMatch, error)
}

// FlatSimilarityIndex is an in-memory SimilarityIndex using brute-force
// cosine similarity. Suitable for small working sets (volatile-scale
// recall), not large-scale vector search.
type FlatSimilarityIndex struct {
	mu     sync.RWMutex
	points map[uuid.UUID]SimilarityPoint
}

// NewFlatSimilarityIndex constructs an empty index.
func NewFlatSimilarityIndex() *FlatSimilarityIndex {
	return &FlatSimilarityIndex{points: make(map[uuid.UUID]SimilarityPoint)}
}

// Upsert implements SimilarityIndex.
func (idx *FlatSimilarityIndex) Upsert(ctx context.Context, point SimilarityPoint) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.points[point.ID] = point
	return nil
}

// Remove implements SimilarityIndex.
func (idx *FlatSimilarityIndex) Remove(ctx context.Context, id uuid.UUID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.points, id)
	return nil
}

// Query implements SimilarityIndex. Points whose embedding dimensionality
// does not match the query are skipped rather than erroring.
func (idx *FlatSimilarityIndex) Query(ctx context.Context, query SimilarityQuery) ([]SimilarityMatch, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]SimilarityMatch, 0, len(idx.points))
	for _, point := range idx.points {
		if !hasAllTags(point.Tags, query.Tags) {
			continue
		}
		if point.Embedding.Len() != query.Embedding.Len() {
			continue
		}
		score := point.Embedding.CosineSimilarity(query.Embedding)
		matches = append(matches, SimilarityMatch{
			ID:       point.ID,
			Score:    score,
			Metadata: point.Metadata,
			Tags:     append([]string(nil), point.Tags...),
		})
	}

	// Mirrors a partial_cmp-then-unwrap_or(Equal) comparator: NaN scores
	// sort as equal to everything rather than panicking or erroring.
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Score, matches[j].Score
		if a != a || b != b {
			return false
		}
		return a > b
	})

	topK := query.TopK
	if topK <= 0 || topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

func hasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
