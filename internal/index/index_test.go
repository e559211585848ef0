package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studymaster/internal/ingest"
)

// stubEmbedder maps known texts to fixed vectors. Unknown texts fail, which
// also serves the atomic-build tests.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vec, ok := s.vectors[text]
	if !ok {
		return nil, errors.New("embedding model unavailable for text")
	}
	return vec, nil
}

func segmentsOf(texts ...string) []ingest.Segment {
	segs := make([]ingest.Segment, len(texts))
	for i, t := range texts {
		segs[i] = ingest.Segment{Ordinal: i, Text: t}
	}
	return segs
}

func TestBuildAndQueryOrdering(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"cats":  {1, 0},
		"dogs":  {0, 1},
		"birds": {0.5, 0.5},
		"query": {1, 0.1},
	}}

	idx, err := Build(context.Background(), segmentsOf("cats", "dogs", "birds"), embedder)
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	results, err := idx.Query(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "cats", results[0].Text)
	assert.Equal(t, "birds", results[1].Text)
}

func TestQueryTiesKeepDocumentOrder(t *testing.T) {
	// Identical vectors produce identical similarities; order must fall back
	// to segment ordinals.
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"a": {1, 1}, "b": {1, 1}, "c": {1, 1},
		"q": {2, 2},
	}}

	idx, err := Build(context.Background(), segmentsOf("a", "b", "c"), embedder)
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{results[0].Ordinal, results[1].Ordinal, results[2].Ordinal})
}

func TestQueryIsIdempotent(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"x": {1, 0}, "y": {0, 1}, "q": {0.9, 0.2},
	}}
	idx, err := Build(context.Background(), segmentsOf("x", "y"), embedder)
	require.NoError(t, err)

	first, err := idx.Query(context.Background(), "q", 6)
	require.NoError(t, err)
	second, err := idx.Query(context.Background(), "q", 6)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestQueryReturnsAtMostK(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"only": {1, 0}, "q": {1, 0},
	}}
	idx, err := Build(context.Background(), segmentsOf("only"), embedder)
	require.NoError(t, err)

	results, err := idx.Query(context.Background(), "q", 6)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBuildIsAtomic(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{
		"known": {1, 0},
	}}
	idx, err := Build(context.Background(), segmentsOf("known", "unknown"), embedder)
	assert.Error(t, err)
	assert.Nil(t, idx)
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	embedder := &stubEmbedder{}
	_, err := Build(context.Background(), nil, embedder)
	assert.Error(t, err)

	_, err = Build(context.Background(), segmentsOf(""), embedder)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestQueryRejectsEmptyText(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float32{"s": {1}}}
	idx, err := Build(context.Background(), segmentsOf("s"), embedder)
	require.NoError(t, err)

	_, err = idx.Query(context.Background(), "", 6)
	assert.ErrorIs(t, err, ErrEmptyText)
}
