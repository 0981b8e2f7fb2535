package cachedEmbedding

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/SupportRAG/internal/data/redisStore"
	"github.com/akolanti/SupportRAG/internal/rag/embedding/fakeEmbedding"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Embedder, *fakeEmbedding.Embedder, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	inner, err := fakeEmbedding.New(16)
	require.NoError(t, err)
	return New(inner, redisStore.NewTestStore(client), time.Hour), inner, mr
}

func TestBatchEmbeddingOnlyEmbedsMisses(t *testing.T) {
	cached, inner, _ := setup(t)
	ctx := context.Background()

	first, err := cached.BatchEmbedding(ctx, []string{"refund policy", "delivery times"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.Calls())

	second, err := cached.BatchEmbedding(ctx, []string{"delivery times", "new question", "refund policy"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, inner.Vector("new question"), second[1])

	_, err = cached.BatchEmbedding(ctx, []string{"new question"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())
}

func TestGetEmbeddingUsesCache(t *testing.T) {
	cached, inner, mr := setup(t)
	ctx := context.Background()

	v1, err := cached.GetEmbedding(ctx, "how do referrals work")
	require.NoError(t, err)
	v2, err := cached.GetEmbedding(ctx, "how do referrals work")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.Calls())
	assert.Len(t, mr.Keys(), 1)
	assert.Contains(t, mr.Keys()[0], "emb:fake/hash@16:q:")
}

func TestQueriesAndDocumentsDoNotShareEntries(t *testing.T) {
	cached, inner, mr := setup(t)
	ctx := context.Background()

	_, err := cached.GetEmbedding(ctx, "refund policy")
	require.NoError(t, err)
	_, err = cached.BatchEmbedding(ctx, []string{"refund policy"})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.Calls())
	assert.Len(t, mr.Keys(), 2)
}

func TestCacheOutageFallsThrough(t *testing.T) {
	cached, inner, mr := setup(t)
	mr.Close()

	v, err := cached.GetEmbedding(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, inner.Vector("anything"), v)

	vs, err := cached.BatchEmbedding(context.Background(), []string{"a thing", "b thing"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	_, ok := decode(encode([]float32{1, 2, 3}), 4)
	assert.False(t, ok)
	v, ok := decode(encode([]float32{1, 2, 3}), 3)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, v)
}
