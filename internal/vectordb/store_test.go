package vectordb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
)

func TestIndexSet(t *testing.T) {
	ctx := context.Background()
	set, err := NewIndexSet(Config{Type: "memory", DistanceType: Cosine}, schema.Indexes.All())
	require.NoError(t, err)
	defer set.Close()

	assert.Equal(t, schema.Indexes.Names(), set.Names())

	repo, err := set.Index("DATO-MACROECONOMICO-VECTOR")
	require.NoError(t, err)
	assert.Equal(t, schema.DefaultEmbeddingDimension, repo.Dimension())

	_, err = set.Index("unknown-index")
	assert.ErrorIs(t, err, ErrUnknownIndex)

	vec := make([]float32, schema.DefaultEmbeddingDimension)
	vec[0] = 1
	err = set.Upsert(ctx, schema.IndexNoticiaRelevante, []Record{{ID: "n-0", Values: vec, Metadata: map[string]interface{}{}}})
	require.NoError(t, err)

	stats, err := set.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats[schema.IndexNoticiaRelevante].Count)
	assert.Equal(t, 0, stats[schema.IndexDocumentosInformes].Count)
	assert.Equal(t, schema.DefaultEmbeddingDimension, stats[schema.IndexNoticiaRelevante].Dimension)

	assert.NoError(t, set.Ping(ctx))
}
