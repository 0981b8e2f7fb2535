package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	TRACE_ID_KEY                    = "traceId"
	RATE_LIMIT_PER_SECOND           = 2
	BURST_RATE_LIMIT_PER_SECOND     = 5
	CacheSimilarityCutoff           = 0.97

	//chunking - measured in characters (runes)
	ChunkSize    = 1000
	ChunkOverlap = 200

	//retrieval
	DefaultK          = 6
	MaxContextChars   = 12000
	MinRelevanceScore = 0.2
	SupportBrand      = "Voy" //named in the no-information answer

	//ingestion
	EmbedBatchSize   = 64
	EmbedConcurrency = 4

	//embeddings
	EmbeddingProviderGoogle = "google"
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderFake   = "fake"

	GoogleEmbeddingModel                = "gemini-embedding-001"
	OpenAIEmbeddingModel                = "text-embedding-3-small"
	EmbeddingOutputDimensionality int32 = 1536
	FakeEmbeddingDimensionality         = 256
	EmbeddingCacheTTL                   = 7 * 24 * time.Hour

	//generation
	GenerationProviderGemini = "gemini"
	GenerationProviderOpenAI = "openai"
	GenerationProviderFake   = "fake"

	GeminiModelName          = "gemini-2.5-flash-lite-preview-09-2025"
	OpenAIModelName          = "gpt-4o-mini"
	ModelTemperature float32 = 0.0

	//vector index
	IndexBackendSQLite = "sqlite"
	IndexBackendQdrant = "qdrant"
	DefaultIndexPath   = "data/index/helpcenter.db"

	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "localhost"
	QdrantPort              = 6333 //http
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false //set for https
	QdrantPoolSize          = 1     //2-5 is preferred for prod according to documentation
	QdrantCollectionPrefix  = "helpcenter"
	SemanticCacheCollection = "semantic-cache"

	RequestsPerNewWorkerCount int64 = 10
	MaxWorkerCount            int64 = 10
	MinWorkerCount            int64 = 1
	IdleWorkerTimeout               = 1 * time.Minute
	QueryJobTimeout                 = 60 * time.Second
	IngestJobTimeout                = 30 * time.Minute

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 60 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second
	AnswerTimeout          = 30 * time.Second

	//server listening port
	ServerListenAddr = ":3000"

	//job requests buffer limit
	BufferLimit = 100

	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second
	OutboundHTTPTimeout = 30 * time.Second

	//redis
	redisHost = "127.0.0.1"
	redisPort = "6379"
	RedisAddr = redisHost + ":" + redisPort

	//redis has 16 DB we can use
	RedisJobStore       = 0
	RedisMessageStore   = 1
	RedisEmbeddingCache = 2

	//redis timeouts
	RedisJobStoreTTL     = 24 * time.Hour
	RedisMessageStoreTTL = 24 * time.Hour
	ChatHistoryTurns     = 5

	//help center
	HelpCenterBaseURL   = "https://joinvoy.zendesk.com/api/v2/help_center"
	HelpCenterLocale    = "en-gb"
	HelpCenterRateLimit = 2.0 //requests per second
	HelpCenterRetries   = 3
	HelpCenterBackoff   = 1 * time.Second

	//artifacts
	ArtifactsDir = "data"

	//upload
	MaxUploadSize = 32 << 20 //32mb
	UploadDir     = "temporary_data"
)
