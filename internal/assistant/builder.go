package assistant

import (
	"context"
	"iter"
	"log"
	"strings"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

const (
	DefaultNumDocuments    = 2
	DefaultHistoryMessages = 4
	DefaultEmbedWorkers    = 4
)

// BuilderConfig holds the settings shared by every assistant a Builder makes.
type BuilderConfig struct {
	LLMModel        string
	EmbeddingsModel string
	NumDocuments    int
	HistoryMessages int
	EmbedWorkers    int
	EmbedBatchSize  int
}

// Builder is the production Factory. It owns the embedding worker pool, so
// callers must Release it on shutdown.
type Builder struct {
	chunks   ChunkStore
	runs     RunStore
	embedder Embedder
	chat     ChatStreamer
	pool     *ants.Pool
	cfg      BuilderConfig
}

// NewBuilder wires the collaborators. A nil chunks store or embedder yields
// assistants without a knowledge base.
func NewBuilder(chunks ChunkStore, runs RunStore, embedder Embedder, chat ChatStreamer, cfg BuilderConfig) (*Builder, error) {
	if cfg.NumDocuments < 0 {
		cfg.NumDocuments = 0
	}
	if cfg.HistoryMessages < 0 {
		cfg.HistoryMessages = 0
	}
	if cfg.EmbedWorkers < 1 {
		cfg.EmbedWorkers = DefaultEmbedWorkers
	}
	if cfg.EmbedBatchSize < 1 {
		cfg.EmbedBatchSize = defaultEmbedBatchSize
	}

	pool, err := ants.NewPool(cfg.EmbedWorkers)
	if err != nil {
		return nil, err
	}

	return &Builder{
		chunks:   chunks,
		runs:     runs,
		embedder: embedder,
		chat:     chat,
		pool:     pool,
		cfg:      cfg,
	}, nil
}

// Release stops the embedding worker pool.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

func (b *Builder) New(cfg Config) (Assistant, error) {
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, domain.ErrMissingParameter
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = b.cfg.LLMModel
	}
	if cfg.EmbeddingsModel == "" {
		cfg.EmbeddingsModel = b.cfg.EmbeddingsModel
	}

	a := &agent{
		cfg:             cfg,
		runID:           cfg.RunID,
		storage:         &runStorage{runs: b.runs},
		chat:            b.chat,
		numDocuments:    b.cfg.NumDocuments,
		historyMessages: b.cfg.HistoryMessages,
	}
	if b.chunks != nil && b.embedder != nil {
		a.kb = &vectorKnowledgeBase{
			name:      cfg.UserID,
			store:     b.chunks,
			embedder:  b.embedder,
			pool:      b.pool,
			batchSize: b.cfg.EmbedBatchSize,
		}
	}
	return a, nil
}

type agent struct {
	cfg             Config
	runID           string
	kb              *vectorKnowledgeBase
	storage         Storage
	chat            ChatStreamer
	numDocuments    int
	historyMessages int
}

func (a *agent) KnowledgeBase() KnowledgeBase {
	if a.kb == nil {
		return nil
	}
	return a.kb
}

func (a *agent) Storage() Storage {
	return a.storage
}

func (a *agent) RunID() string {
	return a.runID
}

// CreateRun persists a new run for the assistant's user and binds to it.
func (a *agent) CreateRun(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	run := &domain.Run{
		ID:              uuid.NewString(),
		UserID:          a.cfg.UserID,
		LLMModel:        a.cfg.LLMModel,
		EmbeddingsModel: a.cfg.EmbeddingsModel,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.storage.CreateRun(ctx, run); err != nil {
		return "", err
	}
	a.runID = run.ID
	return run.ID, nil
}

// Run answers prompt and yields the model's deltas in order. The exchange is
// stored against the run only when the stream completes.
func (a *agent) Run(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if a.runID == "" {
			yield("", domain.ErrRunNotBound)
			return
		}
		if a.chat == nil {
			yield("", domain.ErrLLMFailure)
			return
		}

		var references []domain.Document
		if a.kb != nil && a.numDocuments > 0 {
			refs, err := a.kb.Search(ctx, prompt, a.numDocuments)
			if err != nil {
				yield("", err)
				return
			}
			references = refs
		}

		history, err := a.storage.GetMessages(ctx, a.runID, a.historyMessages)
		if err != nil {
			yield("", domain.ErrRunStorageFailure.WithCause(err))
			return
		}

		var answer strings.Builder
		for delta, err := range a.chat.StreamChat(ctx, a.cfg.LLMModel, buildMessages(references, history, prompt)) {
			if err != nil {
				yield("", domain.ErrLLMFailure.WithCause(err))
				return
			}
			answer.WriteString(delta)
			if !yield(delta, nil) {
				return
			}
		}

		turn := []domain.Message{
			{RunID: a.runID, Role: domain.MessageRoleUser, Content: prompt},
			{RunID: a.runID, Role: domain.MessageRoleAssistant, Content: answer.String()},
		}
		if err := a.storage.AppendMessages(ctx, a.runID, turn); err != nil {
			log.Printf("failed to store history for run %s: %v", a.runID, err)
		}
	}
}
