//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/cloo-solutions/kbrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(hot int) []float32 {
	v := make([]float32, 1536)
	v[hot] = 1
	return v
}

func newChunk(kb, content string, hot int) domain.Document {
	d := domain.Document{
		ID:         fmt.Sprintf("doc_1_%d", hot+1),
		Name:       "doc",
		KBName:     kb,
		Content:    content,
		Page:       1,
		ChunkIndex: hot,
		Meta:       map[string]any{"page": 1},
		Embedding:  unitVector(hot),
	}
	d.Normalize()
	return d
}

func TestKnowledgeChunkRepository_InsertAndSearch(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestDB(ctx, t, "../../migrations")

	repo := NewKnowledgeChunkRepository(pool)

	chunks := []domain.Document{
		newChunk("finance", "Revenue grew twelve percent.", 0),
		newChunk("finance", "Headcount stayed flat.", 1),
		newChunk("hr", "Revenue grew twelve percent.", 0),
	}
	written, err := repo.InsertChunks(ctx, chunks, true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), written)

	results, err := repo.SearchByEmbedding(ctx, "finance", unitVector(1), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Headcount stayed flat.", results[0].Content)
	assert.Equal(t, "finance", results[0].KBName)
	assert.Greater(t, results[0].Score, results[1].Score)

	n, err := repo.CountByKB(ctx, "hr")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestKnowledgeChunkRepository_SkipExisting(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestDB(ctx, t, "../../migrations")

	repo := NewKnowledgeChunkRepository(pool)

	first := newChunk("finance", "Revenue grew twelve percent.", 0)
	_, err := repo.InsertChunks(ctx, []domain.Document{first}, true)
	require.NoError(t, err)

	existing, err := repo.ExistingHashes(ctx, "finance", []string{first.ContentHash, "missing"})
	require.NoError(t, err)
	assert.Contains(t, existing, first.ContentHash)
	assert.NotContains(t, existing, "missing")

	again := first
	again.ID = "other_1_1"
	written, err := repo.InsertChunks(ctx, []domain.Document{again}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(0), written)

	written, err = repo.InsertChunks(ctx, []domain.Document{again}, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), written)

	results, err := repo.SearchByEmbedding(ctx, "finance", unitVector(0), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "other_1_1", results[0].ID)
}

func TestKnowledgeChunkRepository_DeleteByKB(t *testing.T) {
	ctx := context.Background()
	pool := testutil.NewTestDB(ctx, t, "../../migrations")

	repo := NewKnowledgeChunkRepository(pool)

	_, err := repo.InsertChunks(ctx, []domain.Document{
		newChunk("finance", "a", 0),
		newChunk("finance", "b", 1),
		newChunk("hr", "c", 2),
	}, true)
	require.NoError(t, err)

	deleted, err := repo.DeleteByKB(ctx, "finance")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.DeleteByKB(ctx, "finance")
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	n, err := repo.CountByKB(ctx, "hr")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestKnowledgeChunkRepository_EmptyInputs(t *testing.T) {
	repo := &KnowledgeChunkRepository{}

	written, err := repo.InsertChunks(context.Background(), nil, true)
	assert.NoError(t, err)
	assert.Zero(t, written)

	existing, err := repo.ExistingHashes(context.Background(), "kb", nil)
	assert.NoError(t, err)
	assert.Empty(t, existing)
}
