package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// StoredEmbeddingDimensions is the width of knowledge_chunks.embedding in
// the migrations; the embeddings model must produce vectors of this size.
const StoredEmbeddingDimensions = 1536

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	UploadDir     string `envconfig:"UPLOAD_DIR" default:"uploads"`
	DefaultKBName string `envconfig:"DEFAULT_KB_NAME" default:"General-Domain"`
	ChunkSize     int    `envconfig:"CHUNK_SIZE" default:"1750"`

	LLMModel   string `envconfig:"LLM_MODEL" default:"llama3-70b-8192"`
	LLMBaseURL string `envconfig:"LLM_BASE_URL" default:"https://api.groq.com/openai/v1"`
	GroqAPIKey string `envconfig:"GROQ_API_KEY"`

	EmbeddingsModel     string `envconfig:"EMBEDDINGS_MODEL" default:"text-embedding-3-large"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`

	NumDocuments    int           `envconfig:"NUM_DOCUMENTS" default:"2"`
	HistoryMessages int           `envconfig:"HISTORY_MESSAGES" default:"4"`
	EmbedWorkers    int           `envconfig:"EMBED_WORKERS" default:"4"`
	ChatTimeout     time.Duration `envconfig:"CHAT_TIMEOUT" default:"2m"`

	MaxUploadBytes int64    `envconfig:"MAX_UPLOAD_BYTES" default:"67108864"`
	MaxJSONBytes   int64    `envconfig:"MAX_JSON_BYTES" default:"1048576"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"*"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"kbrelay-uploads"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Mirrors log output to a size-rotated file when set.
	LogFile string `envconfig:"LOG_FILE"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KBRELAY", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the database schema cannot hold.
func (c *Config) Validate() error {
	if c.EmbeddingDimensions != StoredEmbeddingDimensions {
		return fmt.Errorf("invalid config: KBRELAY_EMBEDDING_DIMENSIONS is %d but the knowledge_chunks.embedding column stores %d dimensions",
			c.EmbeddingDimensions, StoredEmbeddingDimensions)
	}
	return nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// ChatAPIKey returns the key for the chat endpoint, falling back to the
// OpenAI key when no Groq key is configured.
func (c *Config) ChatAPIKey() string {
	if c.GroqAPIKey != "" {
		return c.GroqAPIKey
	}
	return c.OpenAIAPIKey
}
