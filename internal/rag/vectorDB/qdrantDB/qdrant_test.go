package qdrantDB

import (
	"context"
	"errors"
	"testing"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCollectionNameIsPerModel(t *testing.T) {
	assert.Equal(t, "helpcenter-openai-text-embedding-3-small-1536",
		CollectionName("helpcenter", "openai/text-embedding-3-small@1536"))
	assert.NotEqual(t,
		CollectionName("helpcenter", "gemini/gemini-embedding-001@1536"),
		CollectionName("helpcenter", "openai/text-embedding-3-small@1536"))
}

func TestPayloadRoundTrip(t *testing.T) {
	entry := commonModels.IndexEntry{
		Id:   "chunk-7",
		Text: "TITLE: Referral Program\n\nInvite a friend.",
		Metadata: commonModels.ChunkMetadata{
			DocId: "42", Title: "Referral Program", URL: "https://help/42",
			ChunkIndex: 1, ChunkCount: 3, StartOffset: 800, Category: "Account", Section: "Rewards",
		},
	}
	payload, err := toPayload(entry, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, "42", payload["doc_id"].GetStringValue())
	assert.Equal(t, "batch-1", payload[keyBatchID].GetStringValue())
	assert.Equal(t, int64(1), payload["chunk_index"].GetIntegerValue())

	got, err := fromPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, entry.Text, got.Text)
	assert.Equal(t, entry.Metadata, got.Metadata)
	assert.Equal(t, "chunk-7", got.Id)

	delete(payload, keyMetadata)
	got, err = fromPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, "Rewards", got.Metadata.Section)
	assert.Equal(t, 1, got.Metadata.ChunkIndex)
}

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, pointID("chunk-7"), pointID("chunk-7"))
	uuid := "6f1c2a1e-8e59-4d1b-9a57-1f7b3a0c9d10"
	assert.Equal(t, uuid, pointID(uuid))
	assert.NotEmpty(t, pointID(""))
}

func TestToFilter(t *testing.T) {
	f, err := toFilter(commonModels.MetadataFilter{Field: "chunk_index", Value: "2"})
	require.NoError(t, err)
	require.Len(t, f.Must, 1)
	assert.Equal(t, "chunk_index", f.Must[0].GetField().GetKey())
	assert.Equal(t, int64(2), f.Must[0].GetField().GetMatch().GetInteger())

	f, err = toFilter(commonModels.MetadataFilter{Field: "doc_id", Value: "42"})
	require.NoError(t, err)
	assert.Equal(t, "42", f.Must[0].GetField().GetMatch().GetKeyword())

	_, err = toFilter(commonModels.MetadataFilter{Field: "text", Value: "x"})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestDocFilterKeepsNewBatch(t *testing.T) {
	f := docFilter([]string{"42", "43"}, "")
	require.Len(t, f.Must, 1)
	assert.Empty(t, f.MustNot)
	assert.Equal(t, []string{"42", "43"}, f.Must[0].GetField().GetMatch().GetKeywords().GetStrings())

	f = docFilter([]string{"42"}, "batch-2")
	require.Len(t, f.MustNot, 1)
	assert.Equal(t, keyBatchID, f.MustNot[0].GetField().GetKey())
	assert.Equal(t, "batch-2", f.MustNot[0].GetField().GetMatch().GetKeyword())
}

func TestMapError(t *testing.T) {
	err := mapError("query", status.Error(codes.Unavailable, "down"))
	assert.ErrorIs(t, err, ragErrors.ErrProvider)
	assert.True(t, ragErrors.IsRetryable(err))

	err = mapError("query", status.Error(codes.InvalidArgument, "bad vector"))
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)

	assert.ErrorIs(t, mapError("query", status.Error(codes.Canceled, "gone")), context.Canceled)

	plain := errors.New("plain")
	assert.ErrorIs(t, mapError("query", plain), plain)
}

func TestOpenValidates(t *testing.T) {
	_, err := Open(context.Background(), nil, "helpcenter", "m", 3)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)

	_, err = Open(context.Background(), &qdrant.Client{}, "helpcenter", "", 3)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}
