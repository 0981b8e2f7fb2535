package commonModels

import "time"

type Label struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

// Document is a normalised source article. Body is plain text, HTML already stripped.
type Document struct {
	Id        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	HTMLBody  string    `json:"html_body,omitempty"`
	URL       string    `json:"url"`
	Category  Label     `json:"category"`
	Section   Label     `json:"section"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContentType DocType `json:"content_type,omitempty"`
}

type DocType string

var HTML DocType = "HTML"
var PDF DocType = "PDF"
var DOCX DocType = "DOCX"
var TXT DocType = "TXT"
var ERR DocType = "ERROR"

// ChunkMetadata is carried opaquely by the index. StartOffset is the rune offset
// of the chunk inside the title prefixed document text.
type ChunkMetadata struct {
	DocId       string `json:"doc_id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	ChunkIndex  int    `json:"chunk_index"`
	ChunkCount  int    `json:"chunk_count"`
	StartOffset int    `json:"start_offset"`
	Category    string `json:"category,omitempty"`
	Section     string `json:"section,omitempty"`
}

type Chunk struct {
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// IndexEntry is the persisted unit of a vector index. Entries are appended, never mutated.
type IndexEntry struct {
	Id       string        `json:"id,omitempty"`
	Vector   []float32     `json:"vector"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

type ScoredEntry struct {
	Entry IndexEntry
	Score float64
}

// RetrievalResult is query scoped. RelevanceScore is cosine similarity, higher is more relevant.
type RetrievalResult struct {
	Content        string        `json:"content"`
	Metadata       ChunkMetadata `json:"metadata"`
	RelevanceScore float64       `json:"relevance_score"`
}

type AnswerRecord struct {
	Question string            `json:"question"`
	Answer   string            `json:"answer"`
	Context  []RetrievalResult `json:"context"`
	Cached   bool              `json:"cached,omitempty"`
}

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

type ChatTurn struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// MetadataFilter is an exact match on one metadata field, e.g. {Field: "doc_id", Value: "42"}.
type MetadataFilter struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

const (
	FieldDocId      = "doc_id"
	FieldTitle      = "title"
	FieldURL        = "url"
	FieldChunkIndex = "chunk_index"
	FieldCategory   = "category"
	FieldSection    = "section"
)

var FilterableFields = []string{FieldDocId, FieldTitle, FieldURL, FieldChunkIndex, FieldCategory, FieldSection}
