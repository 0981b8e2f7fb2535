package sqliteDB

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB/sqliteDB/migrations"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

const (
	metaModelID   = "model_id"
	metaDimension = "dimension"
	metaMetric    = "metric"
	metricCosine  = "cosine"
)

// Index is a single file vector index. Vectors are little endian float32 blobs and
// queries are an exact cosine scan, which is plenty for a help center sized corpus.
type Index struct {
	db        *sql.DB
	path      string
	modelID   string
	dimension int

	// writers exclude readers inside this process, sqlite transactions cover other processes
	mu     sync.RWMutex
	logger *logger_i.Logger
}

var _ vectorDB.Index = (*Index)(nil)
var _ vectorDB.Evictor = (*Index)(nil)

// Open creates the index at path or opens the existing one. An existing index built
// for another model or dimension, or a file that is not an index, is an IndexCorruptError.
func Open(path, modelID string, dimension int) (*Index, error) {
	if path == "" {
		return nil, ragErrors.InvalidArgument("index path is empty")
	}
	if modelID == "" {
		return nil, ragErrors.InvalidArgument("index model id is empty")
	}
	if dimension <= 0 {
		return nil, ragErrors.InvalidArgument("index dimension must be positive, got %d", dimension)
	}

	_, statErr := os.Stat(path)
	existed := statErr == nil
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	// WAL lets readers run next to the single writer
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	idx := &Index{
		db:        db,
		path:      path,
		modelID:   modelID,
		dimension: dimension,
		logger:    logger_i.NewLogger("sqlite_index").With("path", path),
	}

	if err := idx.migrate(migrations.FS); err != nil {
		_ = db.Close()
		if existed {
			return nil, &ragErrors.IndexCorruptError{Path: path, Reason: "schema migration failed", Err: err}
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if err := idx.checkMeta(); err != nil {
		_ = db.Close()
		return nil, err
	}

	idx.logger.Info("index opened", "model", modelID, "dimension", dimension, "existed", existed)
	return idx, nil
}

func (idx *Index) migrate(fsys fs.FS) error {
	_, err := idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	if err := idx.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := idx.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations(version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// checkMeta binds a fresh index to this model identity or verifies an existing binding.
func (idx *Index) checkMeta() error {
	meta := map[string]string{}
	rows, err := idx.db.Query("SELECT key, value FROM index_meta")
	if err != nil {
		return &ragErrors.IndexCorruptError{Path: idx.path, Reason: "unreadable metadata", Err: err}
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return &ragErrors.IndexCorruptError{Path: idx.path, Reason: "unreadable metadata", Err: err}
		}
		meta[k] = v
	}
	_ = rows.Close()

	if len(meta) == 0 {
		var n int
		if err := idx.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
			return &ragErrors.IndexCorruptError{Path: idx.path, Reason: "unreadable entries", Err: err}
		}
		if n > 0 {
			return &ragErrors.IndexCorruptError{Path: idx.path, Reason: "entries without model metadata"}
		}
		_, err := idx.db.Exec(`INSERT INTO index_meta(key, value) VALUES (?, ?), (?, ?), (?, ?)`,
			metaModelID, idx.modelID,
			metaDimension, strconv.Itoa(idx.dimension),
			metaMetric, metricCosine)
		if err != nil {
			return fmt.Errorf("writing index metadata: %w", err)
		}
		return nil
	}

	if meta[metaModelID] != idx.modelID {
		return &ragErrors.IndexCorruptError{Path: idx.path,
			Reason: fmt.Sprintf("built for model %q, opened with %q", meta[metaModelID], idx.modelID)}
	}
	if meta[metaDimension] != strconv.Itoa(idx.dimension) {
		return &ragErrors.IndexCorruptError{Path: idx.path,
			Reason: fmt.Sprintf("built with dimension %s, opened with %d", meta[metaDimension], idx.dimension)}
	}
	if m := meta[metaMetric]; m != "" && m != metricCosine {
		return &ragErrors.IndexCorruptError{Path: idx.path, Reason: fmt.Sprintf("unsupported metric %q", m)}
	}
	return nil
}

func (idx *Index) ModelID() string { return idx.modelID }
func (idx *Index) Dimension() int  { return idx.dimension }
func (idx *Index) Path() string    { return idx.path }

func (idx *Index) Close() error {
	return idx.db.Close()
}

// Add writes the whole batch in one transaction.
func (idx *Index) Add(ctx context.Context, entries []commonModels.IndexEntry) error {
	_, err := idx.write(ctx, nil, entries)
	return err
}

// ReplaceDocuments deletes the entries of docIDs and inserts entries in the same transaction.
func (idx *Index) ReplaceDocuments(ctx context.Context, docIDs []string, entries []commonModels.IndexEntry) (int, error) {
	return idx.write(ctx, docIDs, entries)
}

func (idx *Index) write(ctx context.Context, docIDs []string, entries []commonModels.IndexEntry) (int, error) {
	if len(entries) == 0 && len(docIDs) == 0 {
		return 0, nil
	}
	if err := vectorDB.ValidateEntries(entries, idx.dimension); err != nil {
		return 0, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	removed, err := deleteDocs(ctx, tx, docIDs)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO entries(id, batch_id, doc_id, text, metadata, vector) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	batchID := utils.GetNewUUID()
	for _, e := range entries {
		id := e.Id
		if id == "" {
			id = utils.GetNewUUID()
		}
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshalling metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, batchID, e.Metadata.DocId, e.Text, string(meta), encodeVector(e.Vector)); err != nil {
			return 0, fmt.Errorf("inserting entry %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch: %w", err)
	}
	metrics.AddIndexEntries("sqlite", len(entries))
	idx.logger.Debug("batch added", "batchId", batchID, "entries", len(entries), "evicted", removed)
	return removed, nil
}

func (idx *Index) Query(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredEntry, error) {
	if err := vectorDB.ValidateQuery(vector, k, idx.dimension); err != nil {
		return nil, err
	}
	return idx.scan(ctx, vector, k, "", nil)
}

func (idx *Index) QueryWithFilter(ctx context.Context, vector []float32, k int, filter commonModels.MetadataFilter) ([]commonModels.ScoredEntry, error) {
	if err := vectorDB.ValidateQuery(vector, k, idx.dimension); err != nil {
		return nil, err
	}
	filter, err := vectorDB.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if filter.Field == commonModels.FieldDocId {
		return idx.scan(ctx, vector, k, "WHERE doc_id = ?", filter.Value)
	}
	// field names come from the whitelist in NormalizeFilter
	return idx.scan(ctx, vector, k, "WHERE json_extract(metadata, '$."+filter.Field+"') = ?", filter.Value)
}

type scored struct {
	seq   int64
	entry commonModels.IndexEntry
	score float64
}

func (idx *Index) scan(ctx context.Context, vector []float32, k int, where string, arg any) ([]commonModels.ScoredEntry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	query := "SELECT seq, id, text, metadata, vector FROM entries " + where
	var args []any
	if arg != nil {
		args = append(args, arg)
	}
	rows, err := idx.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var hits []scored
	for rows.Next() {
		var (
			s        scored
			metaJSON string
			blob     []byte
		)
		if err := rows.Scan(&s.seq, &s.entry.Id, &s.entry.Text, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		vec, err := decodeVector(blob, idx.dimension)
		if err != nil {
			return nil, &ragErrors.IndexCorruptError{Path: idx.path, Reason: "entry " + s.entry.Id, Err: err}
		}
		if err := json.Unmarshal([]byte(metaJSON), &s.entry.Metadata); err != nil {
			return nil, &ragErrors.IndexCorruptError{Path: idx.path, Reason: "entry " + s.entry.Id, Err: err}
		}
		s.entry.Vector = vec
		s.score = vectorDB.Cosine(vector, vec)
		hits = append(hits, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	// ties fall back to insertion order so every handle returns the same ranking
	slices.SortFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]commonModels.ScoredEntry, len(hits))
	for i, h := range hits {
		out[i] = commonModels.ScoredEntry{Entry: h.entry, Score: h.score}
	}
	return out, nil
}

func (idx *Index) Count(ctx context.Context) (int, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var n int
	if err := idx.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return n, nil
}

// DeleteByDocIDs removes every entry of the given documents in one transaction.
func (idx *Index) DeleteByDocIDs(ctx context.Context, docIDs []string) (int, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	n, err := deleteDocs(ctx, tx, docIDs)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	idx.logger.Debug("evicted entries", "docs", len(docIDs), "entries", n)
	return n, nil
}

func deleteDocs(ctx context.Context, tx *sql.Tx, docIDs []string) (int, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(docIDs)), ",")
	args := make([]any, len(docIDs))
	for i, id := range docIDs {
		args[i] = id
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE doc_id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("deleting entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte, dimension int) ([]float32, error) {
	if len(data) != dimension*4 {
		return nil, errors.New("vector blob has wrong size")
	}
	floats := make([]float32, dimension)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats, nil
}
