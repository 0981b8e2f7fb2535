package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

const (
	ArticlesFile   = "articles.json"
	ChunksFile     = "chunks.json"
	EmbeddingsFile = "chunks_with_embeddings.json"
	RawDir         = "raw"
)

// Store keeps the intermediate ingestion outputs so every stage can be rerun from the
// previous one. Files are replaced atomically.
type Store struct {
	dir    string
	logger *logger_i.Logger
}

func New(dir string) *Store {
	return &Store{dir: dir, logger: logger_i.NewLogger("Artifacts")}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) SaveArticles(docs []commonModels.Document) error {
	return s.save(ArticlesFile, docs)
}

func (s *Store) LoadArticles() ([]commonModels.Document, error) {
	var docs []commonModels.Document
	return docs, s.load(ArticlesFile, &docs)
}

func (s *Store) SaveChunks(chunks []commonModels.Chunk) error {
	return s.save(ChunksFile, chunks)
}

func (s *Store) LoadChunks() ([]commonModels.Chunk, error) {
	var chunks []commonModels.Chunk
	return chunks, s.load(ChunksFile, &chunks)
}

func (s *Store) SaveEmbedded(chunks []commonModels.EmbeddedChunk) error {
	return s.save(EmbeddingsFile, chunks)
}

func (s *Store) LoadEmbedded() ([]commonModels.EmbeddedChunk, error) {
	var chunks []commonModels.EmbeddedChunk
	return chunks, s.load(EmbeddingsFile, &chunks)
}

// SaveRaw stores one untouched source payload under raw/.
func (s *Store) SaveRaw(name string, raw json.RawMessage) error {
	return WriteJSON(filepath.Join(s.dir, RawDir, name), raw)
}

func (s *Store) save(name string, v any) error {
	path := s.Path(name)
	if err := WriteJSON(path, v); err != nil {
		return err
	}
	s.logger.Info("artifact written", "path", path)
	return nil
}

func (s *Store) load(name string, v any) error {
	return ReadJSON(s.Path(name), v)
}

// WriteJSON writes v to a temp file next to path and renames it into place, so readers
// see either the old file or the new one.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadJSON decodes path into v. A missing file keeps os.ErrNotExist in the chain.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading artifact: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
