//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"iter"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/api/handlers"
	"github.com/cloo-solutions/kbrelay/internal/assistant"
	"github.com/cloo-solutions/kbrelay/internal/openai"
	"github.com/cloo-solutions/kbrelay/internal/partition"
	"github.com/cloo-solutions/kbrelay/internal/reader"
	"github.com/cloo-solutions/kbrelay/internal/registry"
	"github.com/cloo-solutions/kbrelay/internal/repository"
	"github.com/cloo-solutions/kbrelay/internal/server"
	"github.com/cloo-solutions/kbrelay/internal/service"
	"github.com/cloo-solutions/kbrelay/internal/storage"
	"github.com/cloo-solutions/kbrelay/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const embeddingDims = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	S3Client     *storage.S3Client
	UploadDir    string
	Chat         *scriptedChat
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server.
// The model providers are replaced by deterministic in-process fakes.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSAccessKey,
		Bucket:          "test-uploads",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		RustFSC:    s3C,
		Pool:       pool,
		S3Client:   s3Client,
		UploadDir:  t.TempDir(),
		Chat:       &scriptedChat{},
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	env.ServerURL, env.ServerCloser = env.startServer(port)
	return env
}

func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

func (e *E2ETestEnv) startServer(port int) (string, func()) {
	builder, err := assistant.NewBuilder(
		repository.NewKnowledgeChunkRepository(e.Pool),
		repository.NewRunRepository(e.Pool),
		hashEmbedder{},
		e.Chat,
		assistant.BuilderConfig{
			LLMModel:        "test-llm",
			EmbeddingsModel: "test-embeddings",
			NumDocuments:    assistant.DefaultNumDocuments,
			HistoryMessages: assistant.DefaultHistoryMessages,
		},
	)
	if err != nil {
		e.T.Fatalf("failed to create builder: %v", err)
	}

	kbSvc := service.NewKnowledgeBaseService(
		partition.NewStore(e.UploadDir),
		registry.NewInMemory(),
		reader.New(reader.Config{ChunkSize: 200}),
		builder,
		e.S3Client,
		service.KnowledgeBaseConfig{ChatTimeout: 10 * time.Second},
	)

	router := server.NewRouter(server.RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(kbSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.T.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(e.T, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		builder.Release()
	}
}

// Response is a decoded JSON response.
type Response struct {
	Status int
	Body   map[string]any
}

// UploadFiles posts files (name → content) to /receive-file.
func (e *E2ETestEnv) UploadFiles(kbName string, files map[string]string) (*Response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if kbName != "" {
		mw.WriteField("kb_name", kbName)
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			return nil, err
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, e.ServerURL+"/receive-file", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

// JSON sends body as JSON with the given method.
func (e *E2ETestEnv) JSON(method, path string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, e.ServerURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *E2ETestEnv) do(req *http.Request) (*Response, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	out := &Response{Status: resp.StatusCode}
	if err := json.Unmarshal(data, &out.Body); err != nil {
		return nil, fmt.Errorf("decode %q: %w", string(data), err)
	}
	return out, nil
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// hashEmbedder maps words into a bag-of-words vector so texts sharing words
// land close together.
type hashEmbedder struct{}

func (hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, embeddingDims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,?!")))
		v[h.Sum32()%embeddingDims]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	if norm == 0 {
		v[0] = 1
		return v, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v, nil
}

func (e hashEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// scriptedChat answers with the number of messages it saw and whether the
// system prompt carried references, and records every request.
type scriptedChat struct {
	requests [][]openai.ChatMessage
}

func (c *scriptedChat) StreamChat(ctx context.Context, model string, messages []openai.ChatMessage) iter.Seq2[string, error] {
	c.requests = append(c.requests, messages)
	return func(yield func(string, error) bool) {
		refs := strings.Contains(messages[0].Content, "<references>")
		parts := []string{"messages=", fmt.Sprint(len(messages)), fmt.Sprintf(" references=%t", refs)}
		for _, p := range parts {
			if !yield(p, nil) {
				return
			}
		}
	}
}
