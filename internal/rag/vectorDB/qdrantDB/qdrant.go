package qdrantDB

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/akolanti/SupportRAG/internal/adapter/utils"
	"github.com/akolanti/SupportRAG/internal/config"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/akolanti/SupportRAG/internal/metrics"
	"github.com/akolanti/SupportRAG/internal/rag/vectorDB"
	"github.com/akolanti/SupportRAG/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const providerName = "qdrant"

// payload keys, flattened so qdrant can filter on them
const (
	keyText     = "text"
	keyEntryID  = "entry_id"
	keyMetadata = "metadata_json"
	keyBatchID  = "batch_id"
)

// Connect opens a grpc client to qdrant and checks it answers.
func Connect(ctx context.Context, cfg config.QdrantConfig) (*qdrant.Client, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		APIKey:   cfg.APIKey,
		UseTLS:   cfg.UseTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}
	healthCtx, cancel := context.WithTimeout(ctx, config.QdrantConnectionTimeout)
	defer cancel()
	if _, err := client.HealthCheck(healthCtx); err != nil {
		_ = client.Close()
		return nil, mapError("health check", err)
	}
	return client, nil
}

// Index stores one embedding model per collection, so a model change never mixes vector spaces.
type Index struct {
	client     *qdrant.Client
	collection string
	modelID    string
	dimension  int
	ownsClient bool
	logger     *logger_i.Logger
}

var _ vectorDB.Index = (*Index)(nil)
var _ vectorDB.Evictor = (*Index)(nil)

// Open binds to the collection for modelID, creating it when missing. A collection
// with another vector size or metric is an IndexCorruptError.
func Open(ctx context.Context, client *qdrant.Client, prefix, modelID string, dimension int) (*Index, error) {
	if client == nil {
		return nil, ragErrors.InvalidArgument("qdrant client is nil")
	}
	if modelID == "" || dimension <= 0 {
		return nil, ragErrors.InvalidArgument("qdrant index needs a model id and a positive dimension")
	}
	idx := &Index{
		client:     client,
		collection: CollectionName(prefix, modelID),
		modelID:    modelID,
		dimension:  dimension,
		logger:     logger_i.NewLogger("Qdrant"),
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	idx.logger.Info("qdrant index opened", "collection", idx.collection, "dimension", dimension)
	return idx, nil
}

// CollectionName derives a qdrant safe collection name from the model identity.
func CollectionName(prefix, modelID string) string {
	replacer := strings.NewReplacer("/", "-", "@", "-", ":", "-", " ", "-")
	return prefix + "-" + replacer.Replace(modelID)
}

func (idx *Index) ensureCollection(ctx context.Context) error {
	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return mapError("collection exists", err)
	}
	if !exists {
		err = idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: idx.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(idx.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return mapError("create collection", err)
		}
		for _, field := range []string{commonModels.FieldDocId, commonModels.FieldCategory, commonModels.FieldSection, keyBatchID} {
			_, err := idx.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: idx.collection,
				FieldName:      field,
				FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			})
			if err != nil {
				idx.logger.Warn("could not create payload index", "field", field, "error", err)
			}
		}
		return nil
	}

	info, err := idx.client.GetCollectionInfo(ctx, idx.collection)
	if err != nil {
		return mapError("collection info", err)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return &ragErrors.IndexCorruptError{Path: idx.collection, Reason: "collection has no single vector config"}
	}
	if int(params.GetSize()) != idx.dimension {
		return &ragErrors.IndexCorruptError{Path: idx.collection,
			Reason: fmt.Sprintf("vector size %d, expected %d", params.GetSize(), idx.dimension)}
	}
	if params.GetDistance() != qdrant.Distance_Cosine {
		return &ragErrors.IndexCorruptError{Path: idx.collection,
			Reason: fmt.Sprintf("distance %s, expected cosine", params.GetDistance())}
	}
	return nil
}

func (idx *Index) ModelID() string    { return idx.modelID }
func (idx *Index) Dimension() int     { return idx.dimension }
func (idx *Index) Collection() string { return idx.collection }

// Close releases the client only when the index created it.
func (idx *Index) Close() error {
	if idx.ownsClient {
		return idx.client.Close()
	}
	return nil
}

// OwnClient hands the client lifecycle to the index.
func (idx *Index) OwnClient() *Index {
	idx.ownsClient = true
	return idx
}

// Add upserts the batch in one request and waits for it to be applied.
func (idx *Index) Add(ctx context.Context, entries []commonModels.IndexEntry) error {
	return idx.upsert(ctx, entries, utils.GetNewUUID())
}

func (idx *Index) upsert(ctx context.Context, entries []commonModels.IndexEntry, batchID string) error {
	if len(entries) == 0 {
		return nil
	}
	if err := vectorDB.ValidateEntries(entries, idx.dimension); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		payload, err := toPayload(e, batchID)
		if err != nil {
			return err
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(e.Id)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: payload,
		}
	}

	_, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return mapError("upsert", err)
	}
	metrics.AddIndexEntries(providerName, len(entries))
	idx.logger.WithTrace(ctx).Debug("batch added", "collection", idx.collection, "batchId", batchID, "entries", len(entries))
	return nil
}

func (idx *Index) Query(ctx context.Context, vector []float32, k int) ([]commonModels.ScoredEntry, error) {
	if err := vectorDB.ValidateQuery(vector, k, idx.dimension); err != nil {
		return nil, err
	}
	return idx.search(ctx, vector, k, nil)
}

func (idx *Index) QueryWithFilter(ctx context.Context, vector []float32, k int, filter commonModels.MetadataFilter) ([]commonModels.ScoredEntry, error) {
	if err := vectorDB.ValidateQuery(vector, k, idx.dimension); err != nil {
		return nil, err
	}
	f, err := toFilter(filter)
	if err != nil {
		return nil, err
	}
	return idx.search(ctx, vector, k, f)
}

func (idx *Index) search(ctx context.Context, vector []float32, k int, filter *qdrant.Filter) ([]commonModels.ScoredEntry, error) {
	log := idx.logger.WithTrace(ctx)
	result, err := idx.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		log.Error("Error querying Qdrant", "error", err)
		return nil, mapError("query", err)
	}

	out := make([]commonModels.ScoredEntry, 0, len(result))
	for _, hit := range result {
		entry, err := fromPayload(hit.GetPayload())
		if err != nil {
			return nil, &ragErrors.IndexCorruptError{Path: idx.collection, Reason: "unreadable payload", Err: err}
		}
		out = append(out, commonModels.ScoredEntry{Entry: entry, Score: float64(hit.GetScore())})
	}
	log.Debug("Found matches", "count", len(out))
	return out, nil
}

func (idx *Index) Count(ctx context.Context) (int, error) {
	n, err := idx.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: idx.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, mapError("count", err)
	}
	return int(n), nil
}

// DeleteByDocIDs drops every point of the given documents. Qdrant does not report how
// many points matched, so the count is taken before the delete.
func (idx *Index) DeleteByDocIDs(ctx context.Context, docIDs []string) (int, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}
	return idx.deleteMatching(ctx, docFilter(docIDs, ""))
}

// ReplaceDocuments upserts entries under a fresh batch id first and only then drops the
// other points of docIDs, so a failed upsert leaves the older points searchable.
func (idx *Index) ReplaceDocuments(ctx context.Context, docIDs []string, entries []commonModels.IndexEntry) (int, error) {
	batchID := utils.GetNewUUID()
	if err := idx.upsert(ctx, entries, batchID); err != nil {
		return 0, err
	}
	if len(docIDs) == 0 {
		return 0, nil
	}
	return idx.deleteMatching(ctx, docFilter(docIDs, batchID))
}

// docFilter matches points of docIDs, except those written by keepBatch when it is set.
func docFilter(docIDs []string, keepBatch string) *qdrant.Filter {
	filter := &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatchKeywords(commonModels.FieldDocId, docIDs...)}}
	if keepBatch != "" {
		filter.MustNot = []*qdrant.Condition{qdrant.NewMatchKeyword(keyBatchID, keepBatch)}
	}
	return filter
}

func (idx *Index) deleteMatching(ctx context.Context, filter *qdrant.Filter) (int, error) {
	n, err := idx.client.Count(ctx, &qdrant.CountPoints{CollectionName: idx.collection, Filter: filter, Exact: qdrant.PtrOf(true)})
	if err != nil {
		return 0, mapError("count", err)
	}
	_, err = idx.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: idx.collection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, mapError("delete", err)
	}
	return int(n), nil
}

// pointID keeps uuid ids and maps anything else onto a stable uuid.
func pointID(id string) string {
	if id == "" {
		return utils.GetNewUUID()
	}
	if utils.IsUUID(id) {
		return id
	}
	return utils.DeterministicUUID(id)
}

func toPayload(e commonModels.IndexEntry, batchID string) (map[string]*qdrant.Value, error) {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	return qdrant.TryValueMap(map[string]any{
		keyText:                      e.Text,
		keyEntryID:                   e.Id,
		keyBatchID:                   batchID,
		keyMetadata:                  string(meta),
		commonModels.FieldDocId:      e.Metadata.DocId,
		commonModels.FieldTitle:      e.Metadata.Title,
		commonModels.FieldURL:        e.Metadata.URL,
		commonModels.FieldChunkIndex: int64(e.Metadata.ChunkIndex),
		commonModels.FieldCategory:   e.Metadata.Category,
		commonModels.FieldSection:    e.Metadata.Section,
	})
}

func fromPayload(payload map[string]*qdrant.Value) (commonModels.IndexEntry, error) {
	entry := commonModels.IndexEntry{
		Id:   payload[keyEntryID].GetStringValue(),
		Text: payload[keyText].GetStringValue(),
	}
	if raw := payload[keyMetadata].GetStringValue(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry.Metadata); err != nil {
			return entry, err
		}
		return entry, nil
	}
	// points written without the metadata blob still carry the flattened fields
	entry.Metadata = commonModels.ChunkMetadata{
		DocId:      payload[commonModels.FieldDocId].GetStringValue(),
		Title:      payload[commonModels.FieldTitle].GetStringValue(),
		URL:        payload[commonModels.FieldURL].GetStringValue(),
		ChunkIndex: int(payload[commonModels.FieldChunkIndex].GetIntegerValue()),
		Category:   payload[commonModels.FieldCategory].GetStringValue(),
		Section:    payload[commonModels.FieldSection].GetStringValue(),
	}
	return entry, nil
}

func toFilter(filter commonModels.MetadataFilter) (*qdrant.Filter, error) {
	filter, err := vectorDB.NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	var cond *qdrant.Condition
	switch v := filter.Value.(type) {
	case int:
		cond = qdrant.NewMatchInt(filter.Field, int64(v))
	case string:
		cond = qdrant.NewMatch(filter.Field, v)
	default:
		return nil, ragErrors.InvalidArgument("unsupported filter value %T", filter.Value)
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{cond}}, nil
}

// mapError translates grpc status codes onto the error taxonomy.
func mapError(op string, err error) error {
	s, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("qdrant %s: %w", op, err)
	}
	switch s.Code() {
	case codes.InvalidArgument:
		return ragErrors.InvalidArgument("qdrant %s: %s", op, s.Message())
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return &ragErrors.ProviderError{Provider: providerName, Op: op, Retryable: true, Err: err}
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("qdrant %s: %w", op, err)
	}
}
