package retriever

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag/embedding/fakeEmbedding"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB/sqliteDB"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dim = 64

func setup(t *testing.T) (*Retriever, *sqliteDB.Index, *fakeEmbedding.Embedder) {
	t.Helper()
	emb, err := fakeEmbedding.New(dim)
	require.NoError(t, err)
	idx, err := sqliteDB.Open(filepath.Join(t.TempDir(), "index.db"), emb.ModelID(), dim)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	r, err := New(idx, emb, 3)
	require.NoError(t, err)
	return r, idx, emb
}

func add(t *testing.T, idx *sqliteDB.Index, emb *fakeEmbedding.Embedder, docID, title string, texts ...string) {
	t.Helper()
	entries := make([]commonModels.IndexEntry, len(texts))
	for i, text := range texts {
		entries[i] = commonModels.IndexEntry{
			Vector: emb.Vector(text),
			Text:   text,
			Metadata: commonModels.ChunkMetadata{
				DocId: docID, Title: title, ChunkIndex: i, ChunkCount: len(texts),
			},
		}
	}
	require.NoError(t, idx.Add(context.Background(), entries))
}

func seedCorpus(t *testing.T, idx *sqliteDB.Index, emb *fakeEmbedding.Embedder) {
	add(t, idx, emb, "1", "Referral Program",
		"Invite a friend with your referral code and both of you get a reward.",
		"Referral rewards arrive after your friend's first order.")
	add(t, idx, emb, "2", "Delivery",
		"Orders are delivered by tracked courier within two working days.",
		"You can change your delivery address before dispatch.")
	add(t, idx, emb, "3", "Approval Process",
		"Every prescription request is reviewed by our clinicians.")
}

func TestRetrieveOrdersByRelevance(t *testing.T) {
	r, idx, emb := setup(t)
	seedCorpus(t, idx, emb)

	res, err := r.Retrieve(context.Background(), "How does the referral program work?", WithK(2))
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, got := range res {
		assert.Equal(t, "Referral Program", got.Metadata.Title)
	}
	assert.GreaterOrEqual(t, res[0].RelevanceScore, res[1].RelevanceScore)
}

func TestRetrieveKBound(t *testing.T) {
	r, idx, emb := setup(t)
	ctx := context.Background()

	res, err := r.Retrieve(ctx, "anything at all", WithK(3))
	require.NoError(t, err)
	assert.Empty(t, res)

	seedCorpus(t, idx, emb)
	res, err = r.Retrieve(ctx, "delivery address")
	require.NoError(t, err)
	assert.Len(t, res, r.DefaultK())

	res, err = r.Retrieve(ctx, "delivery address", WithK(50))
	require.NoError(t, err)
	assert.Len(t, res, 5)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].RelevanceScore, res[i].RelevanceScore)
	}

	for _, k := range []int{0, -2} {
		_, err = r.Retrieve(ctx, "delivery", WithK(k))
		assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
	}
}

func TestRetrieveWithFilter(t *testing.T) {
	r, idx, emb := setup(t)
	seedCorpus(t, idx, emb)

	res, err := r.Retrieve(context.Background(), "referral reward", WithK(5), WithFilter("doc_id", "2"))
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, got := range res {
		assert.Equal(t, "Delivery", got.Metadata.Title)
	}

	_, err = r.Retrieve(context.Background(), "referral", WithFilter("embedding", "x"))
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestRetrieveSurfacesEmbeddingFailure(t *testing.T) {
	r, _, emb := setup(t)
	emb.Err = ragErrors.NewProviderError("fake", "embed", 503, errors.New("unavailable"))

	_, err := r.Retrieve(context.Background(), "referral")
	assert.ErrorIs(t, err, ragErrors.ErrProvider)
	assert.True(t, ragErrors.IsRetryable(err))
}

func TestRetrieveWithVectorSkipsEmbedding(t *testing.T) {
	r, idx, emb := setup(t)
	seedCorpus(t, idx, emb)
	before := emb.Calls()

	res, err := r.RetrieveWithVector(context.Background(), emb.Vector("prescription clinicians"), WithK(1))
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Approval Process", res[0].Metadata.Title)
	assert.Equal(t, before, emb.Calls())
}

func TestNewRejectsMismatchedModel(t *testing.T) {
	emb, err := fakeEmbedding.New(dim)
	require.NoError(t, err)
	idx, err := sqliteDB.Open(filepath.Join(t.TempDir(), "other.db"), "openai/text-embedding-3-small@64", dim)
	require.NoError(t, err)
	defer idx.Close()

	_, err = New(idx, emb, 3)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)

	_, err = New(nil, emb, 3)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestValidateOptions(t *testing.T) {
	r, _, _ := setup(t)

	custom, err := r.Validate()
	require.NoError(t, err)
	assert.False(t, custom)

	custom, err = r.Validate(WithK(3))
	require.NoError(t, err)
	assert.False(t, custom)

	custom, err = r.Validate(WithK(1))
	require.NoError(t, err)
	assert.True(t, custom)

	custom, err = r.Validate(WithFilter("doc_id", "42"))
	require.NoError(t, err)
	assert.True(t, custom)

	_, err = r.Validate(WithK(-2))
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}
