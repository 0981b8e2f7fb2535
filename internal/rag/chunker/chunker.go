package chunker

import (
	"cmp"
	"slices"
	"strings"

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

// Separators ordered from "best" to "worst" for semantic meaning.
// The empty separator is the hard cut.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

const titlePrefix = "TITLE: "

// Chunker splits documents into overlapping windows measured in runes.
// Every chunk is an exact substring of the title prefixed document text.
type Chunker struct {
	size    int
	overlap int
	logger  *logger_i.Logger
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, ragErrors.InvalidArgument("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, ragErrors.InvalidArgument("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{
		size:    size,
		overlap: overlap,
		logger:  logger_i.NewLogger("Chunker"),
	}, nil
}

// Chunk is the one shot form of New(size, overlap).Chunk(docs).
func Chunk(docs []commonModels.Document, size, overlap int) ([]commonModels.Chunk, error) {
	c, err := New(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Chunk(docs), nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk returns chunks in document order, chunk_index ascending within a document.
func (c *Chunker) Chunk(docs []commonModels.Document) []commonModels.Chunk {
	var out []commonModels.Chunk
	for _, doc := range docs {
		out = append(out, c.ChunkDocument(doc)...)
	}
	return out
}

func (c *Chunker) ChunkDocument(doc commonModels.Document) []commonModels.Chunk {
	if strings.TrimSpace(doc.Body) == "" {
		c.logger.Warn("skipping document with empty body", "docId", doc.Id, "title", doc.Title)
		return nil
	}
	if doc.Id == "" {
		doc.Id = derivedID(doc)
		c.logger.Warn("document has no id, derived one", "docId", doc.Id, "title", doc.Title)
	}

	text := []rune(NormalizedText(doc))
	spans := c.merge(c.split(text, 0, len(text), separators))

	chunks := make([]commonModels.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, commonModels.Chunk{
			Text: string(text[s.start:s.end]),
			Metadata: commonModels.ChunkMetadata{
				DocId:       doc.Id,
				Title:       doc.Title,
				URL:         doc.URL,
				ChunkIndex:  i,
				ChunkCount:  len(spans),
				StartOffset: s.start,
				Category:    doc.Category.Name,
				Section:     doc.Section.Name,
			},
		})
	}
	return chunks
}

// derivedID is stable across runs so re-chunking a document keeps its doc_id.
func derivedID(doc commonModels.Document) string {
	if doc.URL != "" {
		return utils.DeterministicUUID(doc.Title + "\n" + doc.URL)
	}
	return utils.DeterministicUUID(doc.Title + "\n" + doc.Body)
}

// NormalizedText is the text a document is chunked from.
func NormalizedText(doc commonModels.Document) string {
	return titlePrefix + doc.Title + "\n\n" + doc.Body
}

// span is a half open rune range [start, end).
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// split breaks text[start:end] into contiguous pieces no longer than size, trying
// each separator in turn. A separator stays attached to the piece it ends.
func (c *Chunker) split(text []rune, start, end int, seps []string) []span {
	if end-start <= c.size {
		return []span{{start, end}}
	}
	if len(seps) == 0 || seps[0] == "" {
		var pieces []span
		for i := start; i < end; i += c.size {
			pieces = append(pieces, span{i, min(i+c.size, end)})
		}
		return pieces
	}

	parts := cutAfter(text, start, end, []rune(seps[0]))
	if len(parts) == 1 {
		return c.split(text, start, end, seps[1:])
	}

	var pieces []span
	for _, p := range parts {
		if p.len() > c.size {
			pieces = append(pieces, c.split(text, p.start, p.end, seps[1:])...)
			continue
		}
		pieces = append(pieces, p)
	}
	return pieces
}

func cutAfter(text []rune, start, end int, sep []rune) []span {
	var parts []span
	from := start
	for i := start; i+len(sep) <= end; {
		if hasPrefixAt(text, i, sep) {
			parts = append(parts, span{from, i + len(sep)})
			i += len(sep)
			from = i
			continue
		}
		i++
	}
	if from < end {
		parts = append(parts, span{from, end})
	}
	return parts
}

func hasPrefixAt(text []rune, at int, sep []rune) bool {
	for j, r := range sep {
		if text[at+j] != r {
			return false
		}
	}
	return true
}

// merge packs pieces greedily into windows of at most size runes. After a window is
// emitted, whole trailing pieces totalling at most overlap runes are carried into the next.
func (c *Chunker) merge(pieces []span) []span {
	var out []span
	var window []span
	total := 0

	for _, p := range pieces {
		if len(window) > 0 && total+p.len() > c.size {
			out = append(out, span{window[0].start, window[len(window)-1].end})
			for len(window) > 0 && (total > c.overlap || total+p.len() > c.size) {
				total -= window[0].len()
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.len()
	}
	if len(window) > 0 {
		out = append(out, span{window[0].start, window[len(window)-1].end})
	}
	return out
}

// Reassemble rebuilds the normalised document text from its chunks by dropping each
// chunk's overlap with its predecessor. Chunks must belong to one document.
func Reassemble(chunks []commonModels.Chunk) string {
	var b strings.Builder
	end := 0
	for _, ch := range sortedByIndex(chunks) {
		runes := []rune(ch.Text)
		skip := end - ch.Metadata.StartOffset
		if skip < 0 {
			skip = 0
		}
		if skip < len(runes) {
			b.WriteString(string(runes[skip:]))
		}
		end = max(end, ch.Metadata.StartOffset+len(runes))
	}
	return b.String()
}

func sortedByIndex(chunks []commonModels.Chunk) []commonModels.Chunk {
	sorted := slices.Clone(chunks)
	slices.SortStableFunc(sorted, func(a, b commonModels.Chunk) int {
		return cmp.Compare(a.Metadata.ChunkIndex, b.Metadata.ChunkIndex)
	})
	return sorted
}
