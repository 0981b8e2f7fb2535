package fakeEmbedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/rag/embedding"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {}, "can": {},
	"do": {}, "does": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {}, "is": {}, "it": {},
	"my": {}, "of": {}, "on": {}, "or": {}, "our": {}, "the": {}, "this": {}, "to": {}, "what": {},
	"when": {}, "with": {}, "work": {}, "you": {}, "your": {}, "title": {},
}

// Embedder is a deterministic hashed bag of words. Texts sharing content words land close
// together, which is enough to exercise retrieval without a network.
type Embedder struct {
	dimension int

	mu    sync.Mutex
	calls int
	Err   error
}

func New(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, ragErrors.InvalidArgument("embedding dimension must be positive, got %d", dimension)
	}
	return &Embedder{dimension: dimension}, nil
}

var _ embedding.Embedder = (*Embedder)(nil)

func (e *Embedder) ModelID() string {
	return embedding.ModelIdentity("fake", "hash", e.dimension)
}

func (e *Embedder) Dimension() int { return e.dimension }

// Calls counts provider round trips, batches count once.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := e.begin(ctx); err != nil {
		return nil, err
	}
	return e.Vector(text), nil
}

func (e *Embedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.begin(ctx); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.Vector(t)
	}
	return out, nil
}

func (e *Embedder) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.Err
}

// Vector is the embedding of text, L2 normalised. Text without content words maps to zero.
func (e *Embedder) Vector(text string) []float32 {
	v := make([]float32, e.dimension)
	for _, tok := range Tokens(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%uint32(e.dimension)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Tokens lower cases text and drops stopwords and punctuation.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}
