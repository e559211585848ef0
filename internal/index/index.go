// Package index builds an in-memory vector index over document segments and
// answers nearest-neighbour queries against it.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"studymaster/internal/ingest"
)

// ErrEmptyText reports an attempt to embed text with no content.
var ErrEmptyText = errors.New("cannot embed empty text")

// Embedder converts text into a fixed-length vector. The same text must map
// to the same vector for retrieval to be meaningful.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is an immutable collection of (segment, vector) pairs. It is built
// once per document and replaced wholesale when a new document is uploaded.
type Index struct {
	segments []ingest.Segment
	vectors  [][]float32
	embedder Embedder
}

// Build embeds every segment and returns the finished index. It fails
// atomically: if any segment cannot be embedded, no index is returned.
func Build(ctx context.Context, segments []ingest.Segment, embedder Embedder) (*Index, error) {
	if len(segments) == 0 {
		return nil, errors.New("cannot build index from zero segments")
	}

	vectors := make([][]float32, 0, len(segments))
	for _, seg := range segments {
		if seg.Text == "" {
			return nil, fmt.Errorf("segment %d: %w", seg.Ordinal, ErrEmptyText)
		}
		vec, err := embedder.Embed(ctx, seg.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed segment %d: %w", seg.Ordinal, err)
		}
		vectors = append(vectors, vec)
	}

	return &Index{
		segments: segments,
		vectors:  vectors,
		embedder: embedder,
	}, nil
}

// Len reports the number of indexed segments.
func (idx *Index) Len() int {
	return len(idx.segments)
}

type scoredSegment struct {
	segment    ingest.Segment
	similarity float32
}

// Query embeds text with the index's own embedder and returns the k segments
// closest by cosine similarity, most similar first. Exact similarity ties
// keep original document order.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]ingest.Segment, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryVec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]scoredSegment, 0, len(idx.segments))
	for i, seg := range idx.segments {
		similarity, err := cosineSimilarity(queryVec, idx.vectors[i])
		if err != nil {
			return nil, fmt.Errorf("similarity for segment %d: %w", seg.Ordinal, err)
		}
		scored = append(scored, scoredSegment{segment: seg, similarity: similarity})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].similarity != scored[j].similarity {
			return scored[i].similarity > scored[j].similarity
		}
		return scored[i].segment.Ordinal < scored[j].segment.Ordinal
	})

	if k > len(scored) {
		k = len(scored)
	}
	results := make([]ingest.Segment, 0, k)
	for _, s := range scored[:k] {
		results = append(results, s.segment)
	}
	return results, nil
}
