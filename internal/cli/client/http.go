package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envAPIURL = "KBRELAY_API_URL"
	envKBName = "KBRELAY_KB"

	defaultAPIURL = "http://localhost:8080"

	// Chat waits on the model; the server bounds it separately.
	defaultTimeout = 3 * time.Minute
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClientWithCmd creates an APIClient with config cascade: flag → env → global config → default
// If cmd is nil, skips flag checking and goes directly to env → global config
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	var baseURL string

	if cmd != nil {
		if flagURL, err := cmd.Flags().GetString("api-url"); err == nil && flagURL != "" {
			baseURL = flagURL
		}
	}

	if baseURL == "" {
		baseURL = os.Getenv(envAPIURL)
	}

	if baseURL == "" {
		globalConfig, err := LoadGlobalConfig()
		if err != nil {
			return nil, err
		}
		if globalConfig != nil && globalConfig.APIURL != "" {
			baseURL = globalConfig.APIURL
		}
	}

	if baseURL == "" {
		baseURL = defaultAPIURL
	}

	return NewAPIClientWithConfig(baseURL), nil
}

func NewAPIClient(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()
	return NewAPIClientWithCmd(cmd)
}

// NewAPIClientWithConfig creates an APIClient for an explicit base URL.
func NewAPIClientWithConfig(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Message string `json:"message"`
	KBName  string `json:"kb_name"`
	KBPath  string `json:"kb_path"`
}

type ListResponse struct {
	KBList  []string `json:"kb_list"`
	KBName  string   `json:"kb_name"`
	Message string   `json:"message,omitempty"`
}

type ChatResponse struct {
	Content string `json:"content"`
	KBName  string `json:"kb_name"`
}

type ClearResponse struct {
	Message string `json:"message"`
	KBName  string `json:"kb_name"`
	KBPath  string `json:"kb_path"`
}

// ProgressFunc is a callback for reporting upload progress.
type ProgressFunc func(current, total int64)

// progressReader wraps an io.Reader and reports progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	current    int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	if pr.onProgress != nil {
		pr.onProgress(pr.current, pr.total)
	}
	return n, err
}

// Upload sends files to the knowledge base. An empty kbName lets the server
// pick its default.
func (c *APIClient) Upload(ctx context.Context, kbName string, paths []string, onProgress ProgressFunc) (*UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if kbName != "" {
		if err := mw.WriteField("kb_name", kbName); err != nil {
			return nil, fmt.Errorf("failed to write form: %w", err)
		}
	}
	for _, p := range paths {
		if err := addFilePart(mw, p); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to write form: %w", err)
	}

	var body io.Reader = &buf
	size := int64(buf.Len())
	if onProgress != nil {
		body = &progressReader{reader: body, total: size, onProgress: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/receive-file", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = size

	var out UploadResponse
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func addFilePart(mw *multipart.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to write form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// List returns the files stored for kbName.
func (c *APIClient) List(ctx context.Context, kbName string) (*ListResponse, error) {
	var out ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/listKB", map[string]string{"kb_name": kbName}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat asks prompt within the knowledge base's conversation.
func (c *APIClient) Chat(ctx context.Context, kbName, prompt string) (*ChatResponse, error) {
	var out ChatResponse
	body := map[string]string{"kb_name": kbName, "user_prompt": prompt}
	if err := c.doJSON(ctx, http.MethodPost, "/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clear drops the knowledge base on the server.
func (c *APIClient) Clear(ctx context.Context, kbName string) (*ClearResponse, error) {
	var out ClearResponse
	if err := c.doJSON(ctx, http.MethodPost, "/clear", map[string]string{"kb_name": kbName}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.send(req, out)
}

// errorBody covers both error shapes the server sends.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *APIClient) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		if err := json.Unmarshal(respBody, &eb); err != nil {
			return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		msg := eb.Error
		if msg == "" {
			msg = eb.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
