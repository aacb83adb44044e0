package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{2, 2}, []float32{1, 1}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"nil input", nil, []float32{1, 0}, 0},
		{"both nil", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("assigns positional ids", func(t *testing.T) {
		chunks := []string{"alpha", "beta", "gamma"}
		embeddings := [][]float32{{1, 0}, {0, 1}, {1, 1}}

		store, err := Build(chunks, embeddings)
		require.NoError(t, err)
		require.Equal(t, 3, store.Len())
		assert.Equal(t, 2, store.Dimension())

		for i, entry := range store.Entries() {
			assert.Equal(t, i, entry.ID)
			assert.Equal(t, chunks[i], entry.Text)
			assert.Equal(t, embeddings[i], entry.Embedding)
		}
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		_, err := Build([]string{"a", "b"}, [][]float32{{1}})
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})

	t.Run("rejects mixed dimensions", func(t *testing.T) {
		_, err := Build([]string{"a", "b"}, [][]float32{{1, 0}, {1, 0, 0}})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("rejects empty embedding", func(t *testing.T) {
		_, err := Build([]string{"a"}, [][]float32{{}})
		assert.ErrorIs(t, err, ErrEmptyEmbedding)
	})

	t.Run("copies input vectors", func(t *testing.T) {
		embeddings := [][]float32{{1, 0}}
		store, err := Build([]string{"a"}, embeddings)
		require.NoError(t, err)

		embeddings[0][0] = 42
		assert.Equal(t, float32(1), store.Entries()[0].Embedding[0])
	})
}

func TestSearch(t *testing.T) {
	store, err := Build(
		[]string{"east", "north", "north-east", "west", "south"},
		[][]float32{{1, 0}, {0, 1}, {1, 1}, {-1, 0}, {0, -1}},
	)
	require.NoError(t, err)

	t.Run("returns top k in descending order", func(t *testing.T) {
		results := store.Search([]float32{1, 0.1}, 3)
		require.Len(t, results, 3)

		for i := 0; i < len(results)-1; i++ {
			assert.GreaterOrEqual(t, results[i].Similarity, results[i+1].Similarity)
		}
		assert.Equal(t, "east", results[0].Text)
		assert.Equal(t, "north-east", results[1].Text)
	})

	t.Run("ties keep id order", func(t *testing.T) {
		// north and south are both orthogonal to the query.
		results := store.Search([]float32{1, 0}, 5)
		require.Len(t, results, 5)

		assert.Equal(t, 0, results[0].ID)
		assert.Equal(t, 2, results[1].ID)
		assert.Equal(t, 1, results[2].ID)
		assert.Equal(t, 4, results[3].ID)
		assert.Equal(t, 3, results[4].ID)
	})

	t.Run("k larger than store", func(t *testing.T) {
		assert.Len(t, store.Search([]float32{1, 0}, 50), 5)
	})

	t.Run("k zero", func(t *testing.T) {
		assert.Empty(t, store.Search([]float32{1, 0}, 0))
	})

	t.Run("mismatched query scores zero", func(t *testing.T) {
		results := store.Search([]float32{1, 0, 0}, 2)
		require.Len(t, results, 2)
		assert.Zero(t, results[0].Similarity)
		assert.Equal(t, 0, results[0].ID)
	})
}

func TestSearch_EmptyStore(t *testing.T) {
	var nilStore *Store
	assert.Empty(t, nilStore.Search([]float32{1}, 3))
	assert.Equal(t, 0, nilStore.Len())

	empty, err := Build(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, empty.Search([]float32{1}, 3))
	assert.Empty(t, empty.Search([]float32{1}, 3))
}

func TestResults_DoNotAliasStore(t *testing.T) {
	store, err := Build([]string{"a", "b"}, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	store.Entries()[0].Embedding[0] = -5
	hits := store.Search([]float32{1, 0}, 1)
	require.Len(t, hits, 1)
	hits[0].Embedding[0] = -5

	again := store.Search([]float32{1, 0}, 1)
	require.Len(t, again, 1)
	assert.Equal(t, 0, again[0].ID)
	assert.InDelta(t, 1.0, again[0].Similarity, 1e-9)
	assert.Equal(t, []float32{1, 0}, store.Entries()[0].Embedding)
}
