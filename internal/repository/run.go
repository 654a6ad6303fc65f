package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunRepository stores assistant runs and their message history.
type RunRepository struct {
	db dbtx
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{db: pool}
}

func (r *RunRepository) Create(ctx context.Context, run *domain.Run) error {
	if err := domain.ValidateRun(run); err != nil {
		return err
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO assistant_runs (run_id, user_id, llm_model, embeddings_model, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.UserID, run.LLMModel, run.EmbeddingsModel, run.CreatedAt, run.UpdatedAt,
	)
	return err
}

func (r *RunRepository) GetByID(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	err := r.db.QueryRow(ctx,
		`SELECT run_id, user_id, llm_model, embeddings_model, created_at, updated_at
		 FROM assistant_runs WHERE run_id = $1`,
		runID,
	).Scan(&run.ID, &run.UserID, &run.LLMModel, &run.EmbeddingsModel, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// ListIDsByUser returns the run ids for userID, newest first.
func (r *RunRepository) ListIDsByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT run_id FROM assistant_runs WHERE user_id = $1 ORDER BY created_at DESC, run_id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendMessages stores messages against runID and bumps the run's
// updated_at in one transaction.
func (r *RunRepository) AppendMessages(ctx context.Context, runID string, messages []domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, m := range messages {
		if !domain.IsValidMessageRole(m.Role) {
			return domain.NewDomainError(domain.ErrCodeValidation, "invalid message role: "+string(m.Role))
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `UPDATE assistant_runs SET updated_at = $2 WHERE run_id = $1`, runID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}

	for _, m := range messages {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO run_messages (run_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
			runID, string(m.Role), m.Content, createdAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// RecentMessages returns up to limit of the latest messages for runID in
// chronological order.
func (r *RunRepository) RecentMessages(ctx context.Context, runID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT run_id, role, content, created_at FROM (
			SELECT id, run_id, role, content, created_at
			FROM run_messages WHERE run_id = $1
			ORDER BY id DESC
			LIMIT $2
		 ) recent ORDER BY id ASC`,
		runID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]domain.Message, 0, limit)
	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.RunID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = domain.MessageRole(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
