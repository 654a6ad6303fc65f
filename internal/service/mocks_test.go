package service

import (
	"context"
	"io"
	"iter"

	"github.com/cloo-solutions/kbrelay/internal/assistant"
	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockFactory is a mock implementation of assistant.Factory
type MockFactory struct {
	mock.Mock
}

func (m *MockFactory) New(cfg assistant.Config) (assistant.Assistant, error) {
	args := m.Called(cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(assistant.Assistant), args.Error(1)
}

// MockAssistant is a mock implementation of assistant.Assistant
type MockAssistant struct {
	mock.Mock
}

func (m *MockAssistant) KnowledgeBase() assistant.KnowledgeBase {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(assistant.KnowledgeBase)
}

func (m *MockAssistant) Storage() assistant.Storage {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(assistant.Storage)
}

func (m *MockAssistant) RunID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockAssistant) CreateRun(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockAssistant) Run(ctx context.Context, prompt string) iter.Seq2[string, error] {
	args := m.Called(ctx, prompt)
	return args.Get(0).(iter.Seq2[string, error])
}

// MockKnowledgeBase is a mock implementation of assistant.KnowledgeBase and
// assistant.VectorDB
type MockKnowledgeBase struct {
	mock.Mock
}

func (m *MockKnowledgeBase) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockKnowledgeBase) LoadDocuments(ctx context.Context, docs []domain.Document, opts assistant.LoadOptions) error {
	args := m.Called(ctx, docs, opts)
	return args.Error(0)
}

func (m *MockKnowledgeBase) Search(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

func (m *MockKnowledgeBase) VectorDB() assistant.VectorDB {
	return m
}

func (m *MockKnowledgeBase) Clear(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	return args.Bool(0), args.Error(1)
}

// MockStorage is a mock implementation of assistant.Storage
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetAllRunIDs(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) CreateRun(ctx context.Context, run *domain.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStorage) GetMessages(ctx context.Context, runID string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, runID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func (m *MockStorage) AppendMessages(ctx context.Context, runID string, messages []domain.Message) error {
	args := m.Called(ctx, runID, messages)
	return args.Error(0)
}

// MockReader is a mock implementation of DocumentReader
type MockReader struct {
	mock.Mock
}

func (m *MockReader) Read(ctx context.Context, path string) ([]domain.Document, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Document), args.Error(1)
}

// MockArchive is a mock implementation of Archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) PutObject(ctx context.Context, kbName, filename string, body io.ReadSeeker, size int64) error {
	args := m.Called(ctx, kbName, filename, body, size)
	return args.Error(0)
}

func (m *MockArchive) DeletePrefix(ctx context.Context, kbName string) (int, error) {
	args := m.Called(ctx, kbName)
	return args.Int(0), args.Error(1)
}

// deltas yields each fragment, then err when it is non-nil.
func deltas(err error, fragments ...string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range fragments {
			if !yield(f, nil) {
				return
			}
		}
		if err != nil {
			yield("", err)
		}
	}
}
