package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStagesResumeFromDisk(t *testing.T) {
	s := New(t.TempDir())

	docs := []commonModels.Document{{Id: "1", Title: "Referral Program", Body: "Invite friends."}}
	require.NoError(t, s.SaveArticles(docs))
	gotDocs, err := s.LoadArticles()
	require.NoError(t, err)
	assert.Equal(t, docs[0].Title, gotDocs[0].Title)

	chunk := commonModels.Chunk{
		Text:     "TITLE: Referral Program\n\nInvite friends.",
		Metadata: commonModels.ChunkMetadata{DocId: "1", Title: "Referral Program", ChunkCount: 1},
	}
	require.NoError(t, s.SaveChunks([]commonModels.Chunk{chunk}))
	embedded := []commonModels.EmbeddedChunk{{Chunk: chunk, Embedding: []float32{0.25, -0.5}, Model: "fake/hash@2"}}
	require.NoError(t, s.SaveEmbedded(embedded))

	gotEmbedded, err := s.LoadEmbedded()
	require.NoError(t, err)
	assert.Equal(t, embedded, gotEmbedded)

	raw, err := os.ReadFile(s.Path(ChunksFile))
	require.NoError(t, err)
	var generic []map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic[0], "text")
	assert.Contains(t, generic[0], "metadata")
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := New(t.TempDir()).LoadChunks()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteJSONLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")
	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))
	require.NoError(t, WriteJSON(path, map[string]int{"a": 2}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var got map[string]int
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, 2, got["a"])
}
