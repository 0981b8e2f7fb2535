package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/akolanti/SupportRAG/internal/domain/ragErrors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	StreamDelay    time.Duration `yaml:"stream_delay"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`
	UploadDir      string        `yaml:"upload_dir"`
}

type AuthConfig struct {
	Token  string `yaml:"token"`
	Bypass bool   `yaml:"bypass"`
}

type RAGConfig struct {
	ChunkSize            int     `yaml:"chunk_size"`
	ChunkOverlap         int     `yaml:"chunk_overlap"`
	K                    int     `yaml:"k"`
	MaxContextChars      int     `yaml:"max_context_chars"`
	MinRelevanceScore    float64 `yaml:"min_relevance_score"`
	EvictStaleOnReingest bool    `yaml:"evict_stale_on_reingest"`
	EmbedBatchSize       int     `yaml:"embed_batch_size"`
	EmbedConcurrency     int     `yaml:"embed_concurrency"`
	Brand                string  `yaml:"brand"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	APIKeyEnv string `yaml:"api_key_env"`
	BaseURL   string `yaml:"base_url"`
	Cache     bool   `yaml:"cache"`
}

type GenerationConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	UseTLS bool   `yaml:"use_tls"`
	APIKey string `yaml:"api_key"`
}

type IndexConfig struct {
	Backend              string       `yaml:"backend"`
	Path                 string       `yaml:"path"`
	Qdrant               QdrantConfig `yaml:"qdrant"`
	SemanticCache        bool         `yaml:"semantic_cache"`
	SemanticCacheCutoff  float32      `yaml:"semantic_cache_cutoff"`
	CollectionNamePrefix string       `yaml:"collection_prefix"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	JobTTL     time.Duration `yaml:"job_ttl"`
	MessageTTL time.Duration `yaml:"message_ttl"`
}

type SourceConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Locale    string        `yaml:"locale"`
	RateLimit float64       `yaml:"rate_limit"`
	Retries   int           `yaml:"retries"`
	Backoff   time.Duration `yaml:"backoff"`
	SaveRaw   bool          `yaml:"save_raw"`
}

type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// AppConfig is the root configuration shared by the api server and ragctl.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	RAG        RAGConfig        `yaml:"rag"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Index      IndexConfig      `yaml:"index"`
	Redis      RedisConfig      `yaml:"redis"`
	Source     SourceConfig     `yaml:"source"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads the YAML config at path. A missing file (or empty path) yields defaults.
// .env is loaded first so api keys and overrides can live there.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load()

	// provider dependent defaults are only known once the file is decoded
	cfg := &AppConfig{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, ragErrors.InvalidArgument("config %s: %v", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ServerListenAddr
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = RATE_LIMIT_PER_SECOND
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = BURST_RATE_LIMIT_PER_SECOND
	}
	if cfg.Server.UploadDir == "" {
		cfg.Server.UploadDir = UploadDir
	}

	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = ChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = ChunkOverlap
	}
	if cfg.RAG.K == 0 {
		cfg.RAG.K = DefaultK
	}
	if cfg.RAG.MaxContextChars == 0 {
		cfg.RAG.MaxContextChars = MaxContextChars
	}
	if cfg.RAG.MinRelevanceScore == 0 {
		cfg.RAG.MinRelevanceScore = MinRelevanceScore
	}
	if cfg.RAG.EmbedBatchSize == 0 {
		cfg.RAG.EmbedBatchSize = EmbedBatchSize
	}
	if cfg.RAG.EmbedConcurrency == 0 {
		cfg.RAG.EmbedConcurrency = EmbedConcurrency
	}
	if cfg.RAG.Brand == "" {
		cfg.RAG.Brand = SupportBrand
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingProviderOpenAI
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case EmbeddingProviderGoogle:
			cfg.Embedding.Model = GoogleEmbeddingModel
		case EmbeddingProviderOpenAI:
			cfg.Embedding.Model = OpenAIEmbeddingModel
		}
	}
	if cfg.Embedding.Dimension == 0 {
		if cfg.Embedding.Provider == EmbeddingProviderFake {
			cfg.Embedding.Dimension = FakeEmbeddingDimensionality
		} else {
			cfg.Embedding.Dimension = int(EmbeddingOutputDimensionality)
		}
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = apiKeyEnvFor(cfg.Embedding.Provider)
	}

	if cfg.Generation.Provider == "" {
		cfg.Generation.Provider = GenerationProviderOpenAI
	}
	if cfg.Generation.Model == "" {
		switch cfg.Generation.Provider {
		case GenerationProviderGemini:
			cfg.Generation.Model = GeminiModelName
		case GenerationProviderOpenAI:
			cfg.Generation.Model = OpenAIModelName
		}
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = apiKeyEnvFor(cfg.Generation.Provider)
	}

	if cfg.Index.Backend == "" {
		cfg.Index.Backend = IndexBackendSQLite
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = DefaultIndexPath
	}
	if cfg.Index.Qdrant.Host == "" {
		cfg.Index.Qdrant.Host = QdrantHost
	}
	if cfg.Index.Qdrant.Port == 0 {
		cfg.Index.Qdrant.Port = QdrantGrpcPort
	}
	if cfg.Index.SemanticCacheCutoff == 0 {
		cfg.Index.SemanticCacheCutoff = CacheSimilarityCutoff
	}
	if cfg.Index.CollectionNamePrefix == "" {
		cfg.Index.CollectionNamePrefix = QdrantCollectionPrefix
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = RedisAddr
	}
	if cfg.Redis.JobTTL == 0 {
		cfg.Redis.JobTTL = RedisJobStoreTTL
	}
	if cfg.Redis.MessageTTL == 0 {
		cfg.Redis.MessageTTL = RedisMessageStoreTTL
	}

	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = HelpCenterBaseURL
	}
	if cfg.Source.Locale == "" {
		cfg.Source.Locale = HelpCenterLocale
	}
	if cfg.Source.RateLimit == 0 {
		cfg.Source.RateLimit = HelpCenterRateLimit
	}
	if cfg.Source.Retries == 0 {
		cfg.Source.Retries = HelpCenterRetries
	}
	if cfg.Source.Backoff == 0 {
		cfg.Source.Backoff = HelpCenterBackoff
	}

	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = ArtifactsDir
	}
}

func apiKeyEnvFor(provider string) string {
	switch provider {
	case EmbeddingProviderGoogle, GenerationProviderGemini:
		return "GEMINI_API_KEY"
	case EmbeddingProviderOpenAI:
		return "OPENAI_API_KEY"
	}
	return ""
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		cfg.Index.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Index.Qdrant.Port = port
		}
	}
	if v := os.Getenv("QDRANT_API_KEY"); v != "" {
		cfg.Index.Qdrant.APIKey = v
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		cfg.Auth.Token = v
	}
	if v := os.Getenv("NO_AUTH_BYPASS"); v != "" {
		cfg.Auth.Bypass, _ = strconv.ParseBool(v)
	}
}

// EmbeddingAPIKey resolves the embedding provider key from the environment.
func (c *AppConfig) EmbeddingAPIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

func (c *AppConfig) GenerationAPIKey() string {
	return os.Getenv(c.Generation.APIKeyEnv)
}

func (c *AppConfig) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return ragErrors.InvalidArgument("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return ragErrors.InvalidArgument("rag.chunk_overlap must be in [0, chunk_size), got %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.K <= 0 {
		return ragErrors.InvalidArgument("rag.k must be positive, got %d", c.RAG.K)
	}
	if c.RAG.MaxContextChars <= 0 {
		return ragErrors.InvalidArgument("rag.max_context_chars must be positive, got %d", c.RAG.MaxContextChars)
	}
	if c.RAG.EmbedBatchSize <= 0 || c.RAG.EmbedConcurrency <= 0 {
		return ragErrors.InvalidArgument("rag.embed_batch_size and rag.embed_concurrency must be positive")
	}
	switch c.Embedding.Provider {
	case EmbeddingProviderGoogle, EmbeddingProviderOpenAI, EmbeddingProviderFake:
	default:
		return ragErrors.InvalidArgument("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return ragErrors.InvalidArgument("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	switch c.Generation.Provider {
	case GenerationProviderGemini, GenerationProviderOpenAI, GenerationProviderFake:
	default:
		return ragErrors.InvalidArgument("unknown generation provider %q", c.Generation.Provider)
	}
	switch c.Index.Backend {
	case IndexBackendSQLite, IndexBackendQdrant:
	default:
		return ragErrors.InvalidArgument("unknown index backend %q", c.Index.Backend)
	}
	return nil
}
