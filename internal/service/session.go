package service

import (
	"context"

	"github.com/cloo-solutions/kbrelay/internal/assistant"
	"github.com/cloo-solutions/kbrelay/internal/domain"
)

// SessionResolver finds the run a knowledge base's conversation continues in.
type SessionResolver struct {
	factory         assistant.Factory
	llmModel        string
	embeddingsModel string
}

func NewSessionResolver(factory assistant.Factory, llmModel, embeddingsModel string) *SessionResolver {
	return &SessionResolver{
		factory:         factory,
		llmModel:        llmModel,
		embeddingsModel: embeddingsModel,
	}
}

// Resolve reuses the newest run stored for kbName, creating one when none
// exists, and returns an assistant bound to it.
func (r *SessionResolver) Resolve(ctx context.Context, kbName string) (assistant.Assistant, string, error) {
	cfg := assistant.Config{
		LLMModel:        r.llmModel,
		EmbeddingsModel: r.embeddingsModel,
		UserID:          kbName,
	}

	asst, err := r.factory.New(cfg)
	if err != nil {
		return nil, "", err
	}

	runIDs, err := asst.Storage().GetAllRunIDs(ctx, kbName)
	if err != nil {
		return nil, "", domain.ErrRunStorageFailure.WithCause(err)
	}

	var runID string
	if len(runIDs) == 0 {
		runID, err = asst.CreateRun(ctx)
		if err != nil {
			return nil, "", domain.ErrRunStorageFailure.WithCause(err)
		}
	} else {
		runID = runIDs[0]
	}

	cfg.RunID = runID
	bound, err := r.factory.New(cfg)
	if err != nil {
		return nil, "", err
	}
	return bound, runID, nil
}
