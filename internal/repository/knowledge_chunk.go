package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// KnowledgeChunkRepository is the vector store: one row per chunk, partitioned
// by knowledge base name.
type KnowledgeChunkRepository struct {
	db dbtx
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: pool}
}

// ExistingHashes returns the subset of hashes already stored for kbName.
func (r *KnowledgeChunkRepository) ExistingHashes(ctx context.Context, kbName string, hashes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(hashes) == 0 {
		return existing, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT content_hash FROM knowledge_chunks WHERE kb_name = $1 AND content_hash = ANY($2)`,
		kbName, hashes,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		existing[h] = struct{}{}
	}
	return existing, rows.Err()
}

// InsertChunks writes chunks in one batch. With skipExisting, rows whose
// (kb_name, content_hash) is already present are left untouched; otherwise
// they are overwritten. It returns the number of rows written.
func (r *KnowledgeChunkRepository) InsertChunks(ctx context.Context, chunks []domain.Document, skipExisting bool) (int64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	query := `INSERT INTO knowledge_chunks
			(id, kb_name, name, page, chunk_index, content, content_hash, meta, embedding, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if skipExisting {
		query += ` ON CONFLICT (kb_name, content_hash) DO NOTHING`
	} else {
		query += ` ON CONFLICT (kb_name, content_hash) DO UPDATE SET
			id = EXCLUDED.id,
			name = EXCLUDED.name,
			page = EXCLUDED.page,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			meta = EXCLUDED.meta,
			embedding = EXCLUDED.embedding`
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		meta := c.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		batch.Queue(query,
			c.ID,
			c.KBName,
			c.Name,
			c.Page,
			c.ChunkIndex,
			c.Content,
			c.ContentHash,
			meta,
			pgvector.NewVector(c.Embedding),
			createdAt,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	var written int64
	for i := range chunks {
		tag, err := results.Exec()
		if err != nil {
			return written, fmt.Errorf("insert chunk %s: %w", chunks[i].ID, err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// DeleteByKB removes every chunk of kbName and returns how many were removed.
func (r *KnowledgeChunkRepository) DeleteByKB(ctx context.Context, kbName string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE kb_name = $1`, kbName)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *KnowledgeChunkRepository) CountByKB(ctx context.Context, kbName string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM knowledge_chunks WHERE kb_name = $1`, kbName).Scan(&n)
	return n, err
}

// SearchByEmbedding returns the chunks of kbName closest to embedding by
// cosine distance, best first.
func (r *KnowledgeChunkRepository) SearchByEmbedding(ctx context.Context, kbName string, embedding []float32, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, kb_name, name, page, chunk_index, content, content_hash, meta, created_at,
		        1.0 / (1.0 + (embedding <=> $2)) AS score
		 FROM knowledge_chunks
		 WHERE kb_name = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		kbName, pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, limit)
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.KBName, &d.Name, &d.Page, &d.ChunkIndex, &d.Content, &d.ContentHash, &d.Meta, &d.CreatedAt, &d.Score); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
