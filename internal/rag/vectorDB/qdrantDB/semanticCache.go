package qdrantDB

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
)

// SemanticCache returns a stored answer when a new question embeds close enough to an old one.
type SemanticCache struct {
	client     *qdrant.Client
	collection string
	cutoff     float32
	logger     *logger_i.Logger
}

var _ vectorDB.AnswerCache = (*SemanticCache)(nil)

// NewSemanticCache keeps one cache collection per embedding model.
func NewSemanticCache(ctx context.Context, client *qdrant.Client, modelID string, dimension int, cutoff float32) (*SemanticCache, error) {
	idx, err := Open(ctx, client, config.SemanticCacheCollection, modelID, dimension)
	if err != nil {
		return nil, fmt.Errorf("semantic cache collection: %w", err)
	}
	return &SemanticCache{
		client:     client,
		collection: idx.Collection(),
		cutoff:     cutoff,
		logger:     logger_i.NewLogger("semantic_cache"),
	}, nil
}

func (c *SemanticCache) GetCachedAnswer(ctx context.Context, queryVector []float32) (commonModels.AnswerRecord, bool, error) {
	loggr := c.logger.WithTrace(ctx)

	loggr.Debug("Searching for cached answer")
	searchResult, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Cache Query failed", "error", err)
		return commonModels.AnswerRecord{}, false, mapError("cache query", err)
	}
	if len(searchResult) == 0 {
		return commonModels.AnswerRecord{}, false, nil
	}

	loggr.Debug("closest cached question", "semantic similarity score", searchResult[0].Score)
	if searchResult[0].Score < c.cutoff {
		return commonModels.AnswerRecord{}, false, nil
	}

	var record commonModels.AnswerRecord
	if err := json.Unmarshal([]byte(searchResult[0].Payload["record"].GetStringValue()), &record); err != nil {
		return commonModels.AnswerRecord{}, false, fmt.Errorf("decoding cached answer: %w", err)
	}
	loggr.Info("semantic cache hit")
	record.Cached = true
	return record, true, nil
}

func (c *SemanticCache) SaveToCache(ctx context.Context, id string, vector []float32, record commonModels.AnswerRecord) error {
	loggr := c.logger.WithTrace(ctx)

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	loggr.Debug("Saving answer to cache")
	_, err = c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(pointID(id)),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"question":  record.Question,
					"record":    string(data),
					"timestamp": time.Now().Unix(),
				}),
			},
		},
	})
	if err != nil {
		loggr.Error("Saving answer to cache failed", "error", err)
		return mapError("cache upsert", err)
	}
	return nil
}
