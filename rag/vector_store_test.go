package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var (
	_ VectorStore    = (*InMemoryVectorStore)(nil)
	_ VectorStore    = (*SQLVectorStore)(nil)
	_ VectorStore    = (*QdrantStore)(nil)
	_ Clearable      = (*InMemoryVectorStore)(nil)
	_ Clearable      = (*SQLVectorStore)(nil)
	_ Clearable      = (*QdrantStore)(nil)
	_ DocumentLister = (*InMemoryVectorStore)(nil)
	_ DocumentLister = (*SQLVectorStore)(nil)
	_ DocumentLister = (*QdrantStore)(nil)
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"parallel", []float64{1, 2}, []float64{2, 4}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"dimension mismatch", []float64{1}, []float64{1, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-12)
		})
	}
}

func TestRankByCosine(t *testing.T) {
	docs := []Document{
		{ID: "film", Embedding: []float64{0, 1}},
		{ID: "music", Embedding: []float64{1, 0}},
		{ID: "music-dup", Embedding: []float64{2, 0}},
	}

	got := rankByCosine([]float64{1, 0}, docs, 2)
	assert.Len(t, got, 2)
	// 同分保持输入顺序
	assert.Equal(t, "music", got[0].Document.ID)
	assert.Equal(t, "music-dup", got[1].Document.ID)
	assert.Nil(t, got[0].Document.Embedding)
	assert.NotNil(t, docs[1].Embedding, "candidates are not mutated")

	assert.Empty(t, rankByCosine([]float64{1, 0}, docs, 0))
	assert.Empty(t, rankByCosine([]float64{1, 0}, nil, 5))
	assert.Len(t, rankByCosine([]float64{1, 0}, docs, 10), 3)
}

func TestProperty_RankByCosineOrdered(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dim := rapid.IntRange(1, 8).Draw(rt, "dim")
		vec := func(label string) []float64 {
			return rapid.SliceOfN(rapid.Float64Range(-1, 1), dim, dim).Draw(rt, label)
		}

		n := rapid.IntRange(0, 20).Draw(rt, "n")
		docs := make([]Document, n)
		for i := range docs {
			docs[i] = Document{ID: string(rune('a' + i)), Embedding: vec("doc")}
		}
		k := rapid.IntRange(0, 25).Draw(rt, "k")

		got := rankByCosine(vec("query"), docs, k)
		if len(got) != min(k, n) {
			rt.Fatalf("got %d results, want %d", len(got), min(k, n))
		}
		for i, r := range got {
			if r.Distance != 1-r.Score {
				rt.Fatalf("distance %v != 1 - score %v", r.Distance, r.Score)
			}
			if i > 0 && got[i-1].Distance > r.Distance {
				rt.Fatalf("results not ascending at %d", i)
			}
		}
	})
}
