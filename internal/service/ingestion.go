package service

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/kbrelay/internal/assistant"
	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/cloo-solutions/kbrelay/internal/registry"
	"github.com/cloo-solutions/kbrelay/internal/telemetry"
)

// DocumentReader turns a stored file into chunks.
type DocumentReader interface {
	Read(ctx context.Context, path string) ([]domain.Document, error)
}

// Ingestor loads one stored file into an assistant's knowledge base.
type Ingestor struct {
	reader   DocumentReader
	registry registry.Registry
}

func NewIngestor(reader DocumentReader, reg registry.Registry) *Ingestor {
	return &Ingestor{reader: reader, registry: reg}
}

// Ingest reads filePath, loads its chunks with skip-existing semantics and
// records filename under kbName. An assistant without a knowledge base makes
// this a no-op. A file that yields no chunks returns ErrReadFailure and is
// not recorded.
func (i *Ingestor) Ingest(ctx context.Context, filePath string, asst assistant.Assistant, kbName, filename string) error {
	ctx, span := telemetry.StartSpan(ctx, "Ingestor.Ingest", telemetry.SpanAttributes{
		KBName:    kbName,
		Filename:  filename,
		Operation: "ingest",
	})
	defer span.End()

	kb := asst.KnowledgeBase()
	if kb == nil {
		log.Printf("ingest: no knowledge base configured, skipping %s", filePath)
		return nil
	}

	log.Printf("ingest: processing %s into knowledge base %s", filePath, kbName)

	docs, err := i.reader.Read(ctx, filePath)
	if err != nil {
		log.Printf("ingest: could not read %s: %v", filePath, err)
		return domain.ErrReadFailure.WithCause(err)
	}
	if len(docs) == 0 {
		log.Printf("ingest: could not read %s: no content", filePath)
		return domain.ErrReadFailure
	}

	if err := kb.LoadDocuments(ctx, docs, assistant.LoadOptions{Upsert: true, SkipExisting: true}); err != nil {
		span.SetError(err)
		return fmt.Errorf("load %s: %w", filename, err)
	}

	i.registry.Record(kbName, filename)
	telemetry.AddBreadcrumb(ctx, "ingest", fmt.Sprintf("%s: %d chunks", filename, len(docs)))
	return nil
}
