package cachedEmbedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"

	"github.com/akolanti/SupportRAG/internal/data/redisStore"
	"github.com/akolanti/SupportRAG/internal/rag/embedding"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
)

// Embedder serves vectors from redis when it has seen the text under the same model
// identity before. Cache failures are logged and fall through to the wrapped provider.
type Embedder struct {
	inner  embedding.Embedder
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

func New(inner embedding.Embedder, store *redisStore.Store, ttl time.Duration) *Embedder {
	return &Embedder{
		inner:  inner,
		store:  store,
		ttl:    ttl,
		logger: logger_i.NewLogger("embedding_cache"),
	}
}

var _ embedding.Embedder = (*Embedder)(nil)

func (e *Embedder) ModelID() string { return e.inner.ModelID() }
func (e *Embedder) Dimension() int  { return e.inner.Dimension() }

func (e *Embedder) GetEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := e.key(kindQuery, text)
	if raw, err := e.store.GetBytes(ctx, key); err == nil {
		if v, ok := decode(raw, e.Dimension()); ok {
			return v, nil
		}
	} else if !e.store.IsNil(err) {
		e.logger.WithTrace(ctx).Warn("embedding cache read failed", "error", err)
	}

	v, err := e.inner.GetEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.store.Set(ctx, key, encode(v), e.ttl); err != nil {
		e.logger.WithTrace(ctx).Warn("embedding cache write failed", "error", err)
	}
	return v, nil
}

func (e *Embedder) BatchEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	log := e.logger.WithTrace(ctx)

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = e.key(kindDocument, t)
	}

	out := make([][]float32, len(texts))
	cached, err := e.store.MGetBytes(ctx, keys...)
	if err != nil {
		log.Warn("embedding cache read failed", "error", err)
		cached = make([][]byte, len(texts))
	}

	var missing []int
	for i, raw := range cached {
		if v, ok := decode(raw, e.Dimension()); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	log.Debug("embedding cache lookup", "hits", len(texts)-len(missing), "misses", len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	toEmbed := make([]string, len(missing))
	for j, i := range missing {
		toEmbed[j] = texts[i]
	}
	fresh, err := e.inner.BatchEmbedding(ctx, toEmbed)
	if err != nil {
		return nil, err
	}

	writes := make(map[string][]byte, len(missing))
	for j, i := range missing {
		out[i] = fresh[j]
		writes[keys[i]] = encode(fresh[j])
	}
	if err := e.store.SetMany(ctx, writes, e.ttl); err != nil {
		log.Warn("embedding cache write failed", "error", err)
	}
	return out, nil
}

// providers may embed queries and documents differently, so they never share an entry
const (
	kindQuery    = "q"
	kindDocument = "d"
)

func (e *Embedder) key(kind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + e.inner.ModelID() + ":" + kind + ":" + hex.EncodeToString(sum[:])
}

func encode(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decode(raw []byte, dimension int) ([]float32, bool) {
	if len(raw) == 0 || len(raw) != 4*dimension {
		return nil, false
	}
	v := make([]float32, dimension)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return v, true
}
