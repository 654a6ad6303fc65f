package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, w.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsIncomingHeader(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}

func TestKBName_WithoutRequestIDIsNoop(t *testing.T) {
	ctx := context.Background()
	SetKBName(ctx, "finance")

	assert.Empty(t, GetKBName(ctx))
}

func TestAccessLog_IncludesKBName(t *testing.T) {
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})

	handler := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetKBName(r.Context(), "finance")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("gone"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/clear", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry accessLogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "finance", entry.KBName)
	assert.Equal(t, http.StatusNotFound, entry.Status)
	assert.Equal(t, 4, entry.Bytes)
	assert.Equal(t, "/clear", entry.Path)
	assert.Equal(t, "10.0.0.1", entry.RemoteAddr)
	assert.Equal(t, "warn", entry.Level)
	assert.NotEmpty(t, entry.RequestID)
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	})
	return &buf
}

func TestAccessLog_SkipsHealth(t *testing.T) {
	buf := captureLog(t)

	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Empty(t, buf.String())
}

func TestAccessLog_UploadSizeAndErrorLevel(t *testing.T) {
	buf := captureLog(t)

	handler := AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	req := httptest.NewRequest(http.MethodPost, "/receive-file", strings.NewReader("0123456789"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry accessLogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, int64(10), entry.RequestBytes)
	assert.Equal(t, "error", entry.Level)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "info", levelFor(http.StatusOK))
	assert.Equal(t, "warn", levelFor(http.StatusBadRequest))
	assert.Equal(t, "error", levelFor(http.StatusGatewayTimeout))
}

func TestMaxBodyBytes_RejectsLargeContentLength(t *testing.T) {
	called := false
	handler := MaxBodyBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("too large"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "request body exceeds 4 bytes")
}

func TestMaxBodyBytes_DisabledPassesThrough(t *testing.T) {
	called := false
	handler := MaxBodyBytes(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/receive-file", strings.NewReader("any size"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, called)
}

func TestSentryMiddleware_PassesThroughWithoutClient(t *testing.T) {
	handler := SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/clear", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSpanStatus(t *testing.T) {
	assert.Equal(t, sentry.SpanStatusOK, spanStatus(http.StatusOK))
	assert.Equal(t, sentry.SpanStatusUnavailable, spanStatus(http.StatusBadGateway))
	assert.Equal(t, sentry.SpanStatusDeadlineExceeded, spanStatus(http.StatusGatewayTimeout))
	assert.Equal(t, sentry.SpanStatusNotFound, spanStatus(http.StatusNotFound))
	assert.Equal(t, sentry.SpanStatusFailedPrecondition, spanStatus(http.StatusUnprocessableEntity))
	assert.Equal(t, sentry.SpanStatusResourceExhausted, spanStatus(http.StatusRequestEntityTooLarge))
	assert.Equal(t, sentry.SpanStatusInvalidArgument, spanStatus(http.StatusMethodNotAllowed))
	assert.Equal(t, sentry.SpanStatusInternalError, spanStatus(http.StatusInternalServerError))
}
