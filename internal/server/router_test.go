package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloo-solutions/kbrelay/internal/api/handlers"
	"github.com/cloo-solutions/kbrelay/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockKnowledgeBaseService struct {
	mock.Mock
}

func (m *MockKnowledgeBaseService) Upload(ctx context.Context, kbName string, files []service.UploadFile) (*service.UploadResult, error) {
	args := m.Called(ctx, kbName, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockKnowledgeBaseService) List(ctx context.Context, kbName string) (*service.ListResult, error) {
	args := m.Called(ctx, kbName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResult), args.Error(1)
}

func (m *MockKnowledgeBaseService) Chat(ctx context.Context, kbName, prompt string) (*service.ChatResult, error) {
	args := m.Called(ctx, kbName, prompt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResult), args.Error(1)
}

func (m *MockKnowledgeBaseService) Clear(ctx context.Context, kbName string) (*service.ClearResult, error) {
	args := m.Called(ctx, kbName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ClearResult), args.Error(1)
}

func (m *MockKnowledgeBaseService) KBPath(kbName string) string {
	return m.Called(kbName).String(0)
}

func setupRouter(cfg RouterConfig) (http.Handler, *MockKnowledgeBaseService) {
	svc := new(MockKnowledgeBaseService)
	cfg.KnowledgeBaseHandler = handlers.NewKnowledgeBaseHandler(svc)
	return NewRouter(cfg), svc
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _ := setupRouter(RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Routes(t *testing.T) {
	router, svc := setupRouter(RouterConfig{})

	svc.On("List", mock.Anything, "Finance").
		Return(&service.ListResult{KBName: "Finance", Files: []string{"a.pdf"}}, nil)
	svc.On("Chat", mock.Anything, "Finance", "hi").
		Return(&service.ChatResult{KBName: "Finance", Content: "hello"}, nil)
	svc.On("Clear", mock.Anything, "Finance").
		Return(&service.ClearResult{KBName: "Finance", KBPath: "uploads/Finance"}, nil)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/listKB", `{"kb_name":"Finance"}`},
		{http.MethodPost, "/chat", `{"kb_name":"Finance","user_prompt":"hi"}`},
		{http.MethodPost, "/clear", `{"kb_name":"Finance"}`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}
	svc.AssertExpectations(t)
}

func TestRouter_WrongMethod(t *testing.T) {
	router, _ := setupRouter(RouterConfig{})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := setupRouter(RouterConfig{})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSRestrictedOrigins(t *testing.T) {
	router, _ := setupRouter(RouterConfig{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_BodyTooLarge(t *testing.T) {
	router, _ := setupRouter(RouterConfig{MaxJSONBytes: 16})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"kb_name":"Finance","user_prompt":"a long prompt"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UploadUsesItsOwnLimit(t *testing.T) {
	router, _ := setupRouter(RouterConfig{MaxBodyBytes: 32, MaxJSONBytes: 1 << 20})

	req := httptest.NewRequest(http.MethodPost, "/receive-file", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "request body exceeds 32 bytes", body["error"])
}
