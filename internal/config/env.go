package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ObjectStoreS3    = "s3"
	ObjectStoreLocal = "local"

	EmbedProviderGemini = "gemini"
	EmbedProviderOpenAI = "openai"

	VectorStorePgvector = "pgvector"
	VectorStoreChromem  = "chromem"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	JWTSecret string

	// object storage
	ObjectStore   string
	AwsAccessKey  string
	AwsSecretKey  string
	AwsRegion     string
	BucketName    string
	LocalStoreDir string
	DownloadDir   string

	// embeddings
	EmbedProvider string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	EmbedModel    string
	EmbedDim      int

	// vector index
	VectorStore string
	DatabaseURL string
	SslCertPath string
	IndexName   string
	ChromemPath string

	// pipeline
	ChunkSize        int
	ChunkOverlap     int
	TruncateBytes    int
	UseNamespace     bool
	EmbedConcurrency int
	UpsertBatchSize  int
	EmbedMaxRetries  int
	EmbedRetryDelay  time.Duration
	FetchTimeout     time.Duration
	ParseTimeout     time.Duration
	EmbedTimeout     time.Duration
	UpsertTimeout    time.Duration
	IngestWorkers    int
	UseReadability   bool
}

// LoadConfig reads the environment (and a .env file if present) and checks
// that the selected backends have what they need.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		ObjectStore:   strings.ToLower(getEnv("OBJECT_STORE", ObjectStoreS3)),
		AwsAccessKey:  getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:  getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:     getEnv("AWS_REGION", "us-east-2"),
		BucketName:    getEnv("BUCKET_NAME", ""),
		LocalStoreDir: getEnv("LOCAL_STORE_DIR", "./data/documents"),
		DownloadDir:   getEnv("DOWNLOAD_DIR", os.TempDir()),

		EmbedProvider: strings.ToLower(getEnv("EMBED_PROVIDER", EmbedProviderGemini)),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		EmbedModel:    getEnv("EMBED_MODEL", ""),
		EmbedDim:      p.getEnvInt("EMBED_DIM", 0),

		VectorStore: strings.ToLower(getEnv("VECTOR_STORE", VectorStorePgvector)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SslCertPath: getEnv("SSL_CERT_PATH", ""),
		IndexName:   getEnv("INDEX_NAME", "docu-query"),
		ChromemPath: getEnv("CHROMEM_PATH", ""),

		ChunkSize:        p.getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     p.getEnvInt("CHUNK_OVERLAP", 200),
		TruncateBytes:    p.getEnvInt("TRUNCATE_BYTES", 36000),
		UseNamespace:     p.getEnvBool("USE_NAMESPACE", false),
		EmbedConcurrency: p.getEnvInt("EMBED_CONCURRENCY", 16),
		UpsertBatchSize:  p.getEnvInt("UPSERT_BATCH_SIZE", 100),
		EmbedMaxRetries:  p.getEnvInt("EMBED_MAX_RETRIES", 2),
		EmbedRetryDelay:  p.getEnvDuration("EMBED_RETRY_DELAY", 500*time.Millisecond),
		FetchTimeout:     p.getEnvDuration("FETCH_TIMEOUT", 2*time.Minute),
		ParseTimeout:     p.getEnvDuration("PARSE_TIMEOUT", 2*time.Minute),
		EmbedTimeout:     p.getEnvDuration("EMBED_TIMEOUT", 30*time.Second),
		UpsertTimeout:    p.getEnvDuration("UPSERT_TIMEOUT", time.Minute),
		IngestWorkers:    p.getEnvInt("INGEST_WORKERS", 2),
		UseReadability:   p.getEnvBool("USE_READABILITY", false),
	}

	if err := errors.Join(append(p.errs, cfg.validate()...)...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error

	switch c.ObjectStore {
	case ObjectStoreS3:
		if c.BucketName == "" {
			errs = append(errs, errors.New("BUCKET_NAME not set"))
		}
		if c.AwsRegion == "" {
			errs = append(errs, errors.New("AWS_REGION not set"))
		}
	case ObjectStoreLocal:
		if c.LocalStoreDir == "" {
			errs = append(errs, errors.New("LOCAL_STORE_DIR not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("OBJECT_STORE=%q: want %s or %s", c.ObjectStore, ObjectStoreS3, ObjectStoreLocal))
	}

	switch c.EmbedProvider {
	case EmbedProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set"))
		}
	case EmbedProviderOpenAI:
		// local OpenAI-compatible servers often need no key
	default:
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER=%q: want %s or %s", c.EmbedProvider, EmbedProviderGemini, EmbedProviderOpenAI))
	}

	switch c.VectorStore {
	case VectorStorePgvector:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case VectorStoreChromem:
	default:
		errs = append(errs, fmt.Errorf("VECTOR_STORE=%q: want %s or %s", c.VectorStore, VectorStorePgvector, VectorStoreChromem))
	}

	if c.IndexName == "" {
		errs = append(errs, errors.New("INDEX_NAME not set"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, errors.New("CHUNK_OVERLAP must be non-negative and smaller than CHUNK_SIZE"))
	}
	return errs
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// parser collects malformed values so they can be reported together.
type parser struct {
	errs []error
}

func (p *parser) getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (p *parser) getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not a boolean", key, v))
		return def
	}
	return b
}

func (p *parser) getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q is not a duration", key, v))
		return def
	}
	return d
}
