package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/panjf2000/ants/v2"
)

const defaultEmbedBatchSize = 32

// vectorKnowledgeBase is a knowledge base backed by the pgvector chunk table,
// partitioned by name.
type vectorKnowledgeBase struct {
	name      string
	store     ChunkStore
	embedder  Embedder
	pool      *ants.Pool
	batchSize int
}

func (kb *vectorKnowledgeBase) Name() string {
	return kb.name
}

func (kb *vectorKnowledgeBase) VectorDB() VectorDB {
	return kb
}

// LoadDocuments embeds and stores docs. With SkipExisting, chunks whose
// content hash is already indexed are dropped before embedding. Without
// Upsert, conflicting rows are never overwritten.
func (kb *vectorKnowledgeBase) LoadDocuments(ctx context.Context, docs []domain.Document, opts LoadOptions) error {
	if len(docs) == 0 {
		return nil
	}

	pending := make([]domain.Document, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		d.KBName = kb.name
		d.Normalize()
		if _, dup := seen[d.ContentHash]; dup {
			continue
		}
		seen[d.ContentHash] = struct{}{}
		pending = append(pending, d)
	}

	if opts.SkipExisting {
		hashes := make([]string, 0, len(pending))
		for _, d := range pending {
			hashes = append(hashes, d.ContentHash)
		}
		existing, err := kb.store.ExistingHashes(ctx, kb.name, hashes)
		if err != nil {
			return domain.ErrVectorStoreFailure.WithCause(err)
		}
		fresh := pending[:0]
		for _, d := range pending {
			if _, ok := existing[d.ContentHash]; !ok {
				fresh = append(fresh, d)
			}
		}
		pending = fresh
	}

	if len(pending) == 0 {
		return nil
	}

	if err := kb.embed(ctx, pending); err != nil {
		return domain.ErrEmbeddingFailure.WithCause(err)
	}

	skipConflicts := opts.SkipExisting || !opts.Upsert
	if _, err := kb.store.InsertChunks(ctx, pending, skipConflicts); err != nil {
		return domain.ErrVectorStoreFailure.WithCause(err)
	}
	return nil
}

// embed fills in Embedding for every doc, one API call per batch, batches
// fanned out over the worker pool.
func (kb *vectorKnowledgeBase) embed(ctx context.Context, docs []domain.Document) error {
	batchSize := kb.batchSize
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for start := 0; start < len(docs); start += batchSize {
		batch := docs[start:min(start+batchSize, len(docs))]
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Content
			}
			vectors, err := kb.embedder.GenerateEmbeddings(ctx, texts)
			if err != nil {
				fail(err)
				return
			}
			if len(vectors) != len(batch) {
				fail(fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vectors)))
				return
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
		}

		wg.Add(1)
		if kb.pool == nil {
			task()
			continue
		}
		if err := kb.pool.Submit(task); err != nil {
			wg.Done()
			fail(err)
			break
		}
	}

	wg.Wait()
	return firstErr
}

func (kb *vectorKnowledgeBase) Search(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	vector, err := kb.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.ErrEmbeddingFailure.WithCause(err)
	}
	docs, err := kb.store.SearchByEmbedding(ctx, kb.name, vector, limit)
	if err != nil {
		return nil, domain.ErrVectorStoreFailure.WithCause(err)
	}
	return docs, nil
}

func (kb *vectorKnowledgeBase) Clear(ctx context.Context) (bool, error) {
	deleted, err := kb.store.DeleteByKB(ctx, kb.name)
	if err != nil {
		return false, domain.ErrVectorStoreFailure.WithCause(err)
	}
	return deleted > 0, nil
}
