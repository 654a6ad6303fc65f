// Package assistant builds per-request retrieval assistants bound to one
// knowledge base and, optionally, one persisted run.
package assistant

import (
	"context"
	"iter"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/cloo-solutions/kbrelay/internal/openai"
)

// Config selects the models and the conversation an assistant works against.
// UserID doubles as the knowledge base name.
type Config struct {
	LLMModel        string
	EmbeddingsModel string
	UserID          string
	RunID           string
}

// Factory constructs assistants. Handlers and services depend on this seam
// rather than on the concrete builder so it can be mocked.
type Factory interface {
	New(cfg Config) (Assistant, error)
}

// Assistant is the capability object handed to the service layer.
type Assistant interface {
	// KnowledgeBase returns nil when the assistant has no knowledge base.
	KnowledgeBase() KnowledgeBase
	Storage() Storage
	RunID() string
	CreateRun(ctx context.Context) (string, error)
	Run(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// LoadOptions controls how LoadDocuments treats chunks that are already indexed.
type LoadOptions struct {
	Upsert       bool
	SkipExisting bool
}

type KnowledgeBase interface {
	Name() string
	LoadDocuments(ctx context.Context, docs []domain.Document, opts LoadOptions) error
	Search(ctx context.Context, query string, limit int) ([]domain.Document, error)
	VectorDB() VectorDB
}

type VectorDB interface {
	// Clear drops every vector of the knowledge base. It reports false when
	// there was nothing to delete.
	Clear(ctx context.Context) (bool, error)
}

// Storage persists runs and their history.
type Storage interface {
	GetAllRunIDs(ctx context.Context, userID string) ([]string, error)
	CreateRun(ctx context.Context, run *domain.Run) error
	GetMessages(ctx context.Context, runID string, limit int) ([]domain.Message, error)
	AppendMessages(ctx context.Context, runID string, messages []domain.Message) error
}

// ChunkStore is the vector table the knowledge base reads and writes.
type ChunkStore interface {
	ExistingHashes(ctx context.Context, kbName string, hashes []string) (map[string]struct{}, error)
	InsertChunks(ctx context.Context, chunks []domain.Document, skipExisting bool) (int64, error)
	DeleteByKB(ctx context.Context, kbName string) (int64, error)
	SearchByEmbedding(ctx context.Context, kbName string, embedding []float32, limit int) ([]domain.Document, error)
}

// RunStore is the persistence behind Storage.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	ListIDsByUser(ctx context.Context, userID string) ([]string, error)
	AppendMessages(ctx context.Context, runID string, messages []domain.Message) error
	RecentMessages(ctx context.Context, runID string, limit int) ([]domain.Message, error)
}

// Embedder generates vectors for chunk content and queries.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatStreamer streams a chat completion as text deltas.
type ChatStreamer interface {
	StreamChat(ctx context.Context, model string, messages []openai.ChatMessage) iter.Seq2[string, error]
}
