package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashTier_Deterministic(t *testing.T) {
	tier := NewHashTier(384)
	ctx := context.Background()

	first, err := tier.Embed(ctx, []string{"this land has irrigation facilities"})
	require.NoError(t, err)
	second, err := tier.Embed(ctx, []string{"this land has irrigation facilities"})
	require.NoError(t, err)

	assert.Equal(t, first, second, "same text must always produce the same vector")
}

func TestHashTier_Dimension(t *testing.T) {
	for _, dim := range []int{384, 1024} {
		tier := NewHashTier(dim)
		vectors, err := tier.Embed(context.Background(), []string{"a", "b", "c"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		for _, v := range vectors {
			assert.Len(t, v, dim)
		}
	}
}

func TestHashTier_DistinctTexts(t *testing.T) {
	tier := NewHashTier(384)
	vectors, err := tier.Embed(context.Background(), []string{"urban residential plot", "agricultural land"})
	require.NoError(t, err)
	assert.NotEqual(t, vectors[0], vectors[1], "distinct texts must produce distinct vectors")
}

func TestHashTier_UnitNorm(t *testing.T) {
	tier := NewHashTier(384)
	vectors, err := tier.Embed(context.Background(), []string{"some text"})
	require.NoError(t, err)

	var norm float64
	for _, v := range vectors[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4, "vectors should be L2-normalized")
}
