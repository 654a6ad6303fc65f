package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/assistant"
	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/cloo-solutions/kbrelay/internal/registry"
	"github.com/cloo-solutions/kbrelay/internal/telemetry"
)

const DefaultChatTimeout = 2 * time.Minute

// PartitionStore maps knowledge base names to directories of uploaded files.
type PartitionStore interface {
	Path(name string) string
	Ensure(name string) (string, error)
	Exists(name string) bool
	Save(name, filename string, r io.Reader) (string, error)
	Delete(name string) error
	ListFiles(name string) ([]string, error)
}

// Archive mirrors uploaded originals outside the local disk.
type Archive interface {
	PutObject(ctx context.Context, kbName, filename string, body io.ReadSeeker, size int64) error
	DeletePrefix(ctx context.Context, kbName string) (int, error)
}

// KnowledgeBaseConfig holds the service-wide settings.
type KnowledgeBaseConfig struct {
	DefaultKBName   string
	LLMModel        string
	EmbeddingsModel string
	ChatTimeout     time.Duration
}

// KnowledgeBaseService handles upload, listing, chat and clearing of
// knowledge bases.
type KnowledgeBaseService struct {
	partitions PartitionStore
	registry   registry.Registry
	factory    assistant.Factory
	ingestor   *Ingestor
	relay      *QueryRelay
	archive    Archive
	cfg        KnowledgeBaseConfig
}

// NewKnowledgeBaseService creates a new KnowledgeBaseService instance.
// archive may be nil.
func NewKnowledgeBaseService(
	partitions PartitionStore,
	reg registry.Registry,
	reader DocumentReader,
	factory assistant.Factory,
	archive Archive,
	cfg KnowledgeBaseConfig,
) *KnowledgeBaseService {
	if cfg.DefaultKBName == "" {
		cfg.DefaultKBName = domain.DefaultKnowledgeBaseName
	}
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = DefaultChatTimeout
	}

	return &KnowledgeBaseService{
		partitions: partitions,
		registry:   reg,
		factory:    factory,
		ingestor:   NewIngestor(reader, reg),
		relay:      NewQueryRelay(NewSessionResolver(factory, cfg.LLMModel, cfg.EmbeddingsModel)),
		archive:    archive,
		cfg:        cfg,
	}
}

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	Filename string
	Content  io.Reader
}

type UploadResult struct {
	KBName   string
	KBPath   string
	Ingested []string
	Failed   []string
	Skipped  int
}

type ListResult struct {
	KBName string
	Files  []string
}

type ChatResult struct {
	KBName  string
	Content string
}

type ClearResult struct {
	KBName string
	KBPath string
}

// KBPath returns the directory that backs kbName.
func (s *KnowledgeBaseService) KBPath(kbName string) string {
	return s.partitions.Path(kbName)
}

// Upload stores files under the knowledge base and ingests them one by one.
// A failing file is logged and does not stop the rest of the batch.
func (s *KnowledgeBaseService) Upload(ctx context.Context, kbName string, files []UploadFile) (*UploadResult, error) {
	name := domain.ResolveKBName(kbName, s.cfg.DefaultKBName)
	if err := domain.ValidateKBName(name); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Upload", telemetry.SpanAttributes{
		KBName:    name,
		Operation: "upload",
	})
	defer span.End()

	kbPath, err := s.partitions.Ensure(name)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("create knowledge base directory: %w", err)
	}

	asst, err := s.factory.New(assistant.Config{
		LLMModel:        s.cfg.LLMModel,
		EmbeddingsModel: s.cfg.EmbeddingsModel,
		UserID:          name,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result := &UploadResult{KBName: name, KBPath: kbPath, Ingested: []string{}, Failed: []string{}}
	for _, f := range files {
		if f.Filename == "" {
			log.Printf("upload: error processing file: empty filename in %s", name)
			result.Skipped++
			continue
		}

		if err := s.ingestFile(ctx, asst, name, f); err != nil {
			log.Printf("upload: %s/%s: %v", name, f.Filename, err)
			result.Failed = append(result.Failed, f.Filename)
			continue
		}
		result.Ingested = append(result.Ingested, f.Filename)
	}

	log.Printf("upload: kb %s ingested=%d failed=%d skipped=%d",
		name, len(result.Ingested), len(result.Failed), result.Skipped)
	return result, nil
}

func (s *KnowledgeBaseService) ingestFile(ctx context.Context, asst assistant.Assistant, kbName string, f UploadFile) error {
	saved, err := s.partitions.Save(kbName, f.Filename, f.Content)
	if err != nil {
		return err
	}

	if s.archive != nil {
		if err := s.archiveFile(ctx, kbName, f.Filename, saved); err != nil {
			log.Printf("upload: archive %s/%s: %v", kbName, f.Filename, err)
		}
	}

	return s.ingestor.Ingest(ctx, saved, asst, kbName, f.Filename)
}

func (s *KnowledgeBaseService) archiveFile(ctx context.Context, kbName, filename, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	return s.archive.PutObject(ctx, kbName, filename, file, info.Size())
}

// List returns the files stored for a knowledge base. An unknown knowledge
// base yields an empty list.
func (s *KnowledgeBaseService) List(ctx context.Context, kbName string) (*ListResult, error) {
	if err := domain.ValidateKBName(kbName); err != nil {
		return nil, err
	}

	files, err := s.partitions.ListFiles(kbName)
	if err != nil {
		return nil, fmt.Errorf("list knowledge base files: %w", err)
	}
	return &ListResult{KBName: kbName, Files: files}, nil
}

// Chat answers prompt within the knowledge base's ongoing conversation,
// bounded by the configured chat timeout.
func (s *KnowledgeBaseService) Chat(ctx context.Context, kbName, prompt string) (*ChatResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.ErrMissingParameter
	}
	if err := domain.ValidateKBName(kbName); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Chat", telemetry.SpanAttributes{
		KBName:    kbName,
		Operation: "chat",
	})
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ChatTimeout)
	defer cancel()

	content, err := s.relay.Relay(ctx, kbName, prompt)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = domain.ErrChatTimeout.WithCause(err)
		}
		span.SetError(err)
		return nil, err
	}

	return &ChatResult{KBName: kbName, Content: content}, nil
}

// Clear drops the knowledge base's vectors, uploaded files, registry entry
// and archived originals. It returns ErrKnowledgeBaseNotFound when there
// were neither vectors nor files.
func (s *KnowledgeBaseService) Clear(ctx context.Context, kbName string) (*ClearResult, error) {
	if err := domain.ValidateKBName(kbName); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Clear", telemetry.SpanAttributes{
		KBName:    kbName,
		Operation: "clear",
	})
	defer span.End()

	kbPath := s.partitions.Path(kbName)
	log.Printf("clear: clearing knowledge base %s", kbName)

	asst, err := s.factory.New(assistant.Config{
		LLMModel:        s.cfg.LLMModel,
		EmbeddingsModel: s.cfg.EmbeddingsModel,
		UserID:          kbName,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	cleared := false
	if kb := asst.KnowledgeBase(); kb != nil {
		cleared, err = kb.VectorDB().Clear(ctx)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
	}

	dirExists := s.partitions.Exists(kbName)
	if !cleared && !dirExists {
		return nil, domain.ErrKnowledgeBaseNotFound
	}

	if dirExists {
		if err := s.partitions.Delete(kbName); err != nil {
			log.Printf("clear: error deleting directory %s: %v", kbPath, err)
		} else {
			log.Printf("clear: directory %s deleted", kbPath)
		}
	}
	s.registry.Forget(kbName)

	if s.archive != nil {
		if n, err := s.archive.DeletePrefix(ctx, kbName); err != nil {
			log.Printf("clear: archive %s: %v", kbName, err)
		} else if n > 0 {
			log.Printf("clear: removed %d archived files of %s", n, kbName)
		}
	}

	return &ClearResult{KBName: kbName, KBPath: kbPath}, nil
}
