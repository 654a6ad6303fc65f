package assistant

import (
	"context"

	"github.com/cloo-solutions/kbrelay/internal/domain"
)

type runStorage struct {
	runs RunStore
}

func (s *runStorage) GetAllRunIDs(ctx context.Context, userID string) ([]string, error) {
	return s.runs.ListIDsByUser(ctx, userID)
}

func (s *runStorage) CreateRun(ctx context.Context, run *domain.Run) error {
	return s.runs.Create(ctx, run)
}

func (s *runStorage) GetMessages(ctx context.Context, runID string, limit int) ([]domain.Message, error) {
	return s.runs.RecentMessages(ctx, runID, limit)
}

func (s *runStorage) AppendMessages(ctx context.Context, runID string, messages []domain.Message) error {
	return s.runs.AppendMessages(ctx, runID, messages)
}
