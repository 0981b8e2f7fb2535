package sqliteDB

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "fake/hash@3"

func openTemp(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index", "test.db")
	idx, err := Open(path, testModel, 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func entry(doc string, i int, v ...float32) commonModels.IndexEntry {
	return commonModels.IndexEntry{
		Vector: v,
		Text:   fmt.Sprintf("%s chunk %d", doc, i),
		Metadata: commonModels.ChunkMetadata{
			DocId:      doc,
			Title:      "Title " + doc,
			ChunkIndex: i,
			ChunkCount: 2,
			Category:   "cat-" + doc,
		},
	}
}

func seed(t *testing.T, idx *Index) {
	t.Helper()
	require.NoError(t, idx.Add(context.Background(), []commonModels.IndexEntry{
		entry("a", 0, 1, 0, 0),
		entry("a", 1, 0.9, 0.1, 0),
		entry("b", 0, 0, 1, 0),
		entry("b", 1, 0, 0.8, 0.2),
		entry("c", 0, -1, 0, 0),
	}))
}

func TestQueryOrdersByDescendingScore(t *testing.T) {
	idx, _ := openTemp(t)
	seed(t, idx)

	res, err := idx.Query(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 5)

	assert.Equal(t, "a chunk 0", res[0].Entry.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
	assert.Equal(t, "c chunk 0", res[4].Entry.Text)
	assert.InDelta(t, -1.0, res[4].Score, 1e-6)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
	assert.Equal(t, "a", res[0].Entry.Metadata.DocId)
	assert.Len(t, res[0].Entry.Vector, 3)
}

func TestQueryKBounds(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	res, err := idx.Query(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	seed(t, idx)
	res, err = idx.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = idx.Query(ctx, []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, res, 5)

	for _, k := range []int{0, -1} {
		_, err = idx.Query(ctx, []float32{1, 0, 0}, k)
		assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
	}
	_, err = idx.Query(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestQueryWithFilter(t *testing.T) {
	idx, _ := openTemp(t)
	seed(t, idx)
	ctx := context.Background()

	res, err := idx.QueryWithFilter(ctx, []float32{1, 0, 0}, 5, commonModels.MetadataFilter{Field: "doc_id", Value: "b"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, "b", r.Entry.Metadata.DocId)
	}

	res, err = idx.QueryWithFilter(ctx, []float32{1, 0, 0}, 5, commonModels.MetadataFilter{Field: "chunk_index", Value: float64(1)})
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = idx.QueryWithFilter(ctx, []float32{0, 1, 0}, 5, commonModels.MetadataFilter{Field: "category", Value: "cat-c"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c chunk 0", res[0].Entry.Text)

	_, err = idx.QueryWithFilter(ctx, []float32{1, 0, 0}, 5, commonModels.MetadataFilter{Field: "vector", Value: "x"})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestAddRejectsWrongDimensionWholeBatch(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	err := idx.Add(ctx, []commonModels.IndexEntry{entry("a", 0, 1, 0, 0), entry("a", 1, 1, 0)})
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddIsAtomicOnConflict(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	first := entry("a", 0, 1, 0, 0)
	first.Id = "dup"
	require.NoError(t, idx.Add(ctx, []commonModels.IndexEntry{first}))

	second := entry("b", 0, 0, 1, 0)
	clash := entry("b", 1, 0, 1, 0)
	clash.Id = "dup"
	assert.Error(t, idx.Add(ctx, []commonModels.IndexEntry{second, clash}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReopenIsIdempotent(t *testing.T) {
	idx, path := openTemp(t)
	seed(t, idx)

	other, err := Open(path, testModel, 3)
	require.NoError(t, err)
	defer other.Close()

	q := []float32{0.5, 0.5, 0}
	r1, err := idx.Query(context.Background(), q, 4)
	require.NoError(t, err)
	r2, err := other.Query(context.Background(), q, 4)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	require.NoError(t, idx.Close())
	third, err := Open(path, testModel, 3)
	require.NoError(t, err)
	defer third.Close()
	r3, err := third.Query(context.Background(), q, 4)
	require.NoError(t, err)
	assert.Equal(t, r1, r3)
}

func TestOpenRejectsIncompatibleStore(t *testing.T) {
	_, path := openTemp(t)

	_, err := Open(path, "openai/text-embedding-3-small@3", 3)
	assert.ErrorIs(t, err, ragErrors.ErrIndexCorrupt)

	_, err = Open(path, testModel, 4)
	assert.ErrorIs(t, err, ragErrors.ErrIndexCorrupt)

	garbage := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte(strings.Repeat("this is not an sqlite database file. ", 200)), 0o600))
	_, err = Open(garbage, testModel, 3)
	assert.ErrorIs(t, err, ragErrors.ErrIndexCorrupt)
}

func TestOpenValidatesArguments(t *testing.T) {
	dir := t.TempDir()
	_, err := Open("", testModel, 3)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
	_, err = Open(filepath.Join(dir, "x.db"), "", 3)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
	_, err = Open(filepath.Join(dir, "x.db"), testModel, 0)
	assert.ErrorIs(t, err, ragErrors.ErrInvalidArgument)
}

func TestDeleteByDocIDs(t *testing.T) {
	idx, _ := openTemp(t)
	seed(t, idx)
	ctx := context.Background()

	n, err := idx.DeleteByDocIDs(ctx, []string{"a", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReplaceDocuments(t *testing.T) {
	idx, _ := openTemp(t)
	seed(t, idx)
	ctx := context.Background()

	n, err := idx.ReplaceDocuments(ctx, []string{"a"}, []commonModels.IndexEntry{entry("a", 0, 0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := idx.QueryWithFilter(ctx, []float32{0, 0, 1}, 5, commonModels.MetadataFilter{Field: "doc_id", Value: "a"})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}

func TestFailedReplaceKeepsOldEntries(t *testing.T) {
	idx, _ := openTemp(t)
	seed(t, idx)
	ctx := context.Background()

	first, second := entry("a", 0, 0, 0, 1), entry("a", 1, 0, 0, 1)
	first.Id, second.Id = "dup", "dup"
	_, err := idx.ReplaceDocuments(ctx, []string{"a"}, []commonModels.IndexEntry{first, second})
	require.Error(t, err)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	res, err := idx.QueryWithFilter(ctx, []float32{1, 0, 0}, 5, commonModels.MetadataFilter{Field: "doc_id", Value: "a"})
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestConcurrentReadersNeverSeePartialBatch(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()
	const batches, batchSize = 10, 4

	var wg sync.WaitGroup
	for b := 0; b < batches; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			batch := make([]commonModels.IndexEntry, batchSize)
			for i := range batch {
				batch[i] = entry(fmt.Sprintf("doc-%d", b), i, 1, float32(i), 0)
			}
			assert.NoError(t, idx.Add(ctx, batch))
		}(b)
	}
	for r := 0; r < 20; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := idx.Query(ctx, []float32{1, 0, 0}, 1000)
			if assert.NoError(t, err) {
				assert.Zero(t, len(res)%batchSize, "saw %d entries", len(res))
			}
		}()
	}
	wg.Wait()

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, batches*batchSize, n)
}
