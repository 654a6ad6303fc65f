package middleware

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// accessLogEntry is one JSON line per request. RequestBytes is the declared
// upload size, -1 when the client streamed without a length.
type accessLogEntry struct {
	Timestamp    string `json:"ts"`
	Level        string `json:"level"`
	Method       string `json:"method"`
	Path         string `json:"path"`
	Status       int    `json:"status"`
	RequestBytes int64  `json:"request_bytes,omitempty"`
	Bytes        int    `json:"bytes"`
	DurationMS   int64  `json:"duration_ms"`
	RequestID    string `json:"request_id,omitempty"`
	KBName       string `json:"kb_name,omitempty"`
	RemoteAddr   string `json:"remote_addr,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
}

// responseRecorder captures the status and size written by a handler. It is
// shared by the access log and Sentry middleware.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// AccessLog writes a JSON line for every request except /health.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}

		payload, err := json.Marshal(accessLogEntry{
			Timestamp:    start.UTC().Format(time.RFC3339Nano),
			Level:        levelFor(status),
			Method:       r.Method,
			Path:         r.URL.Path,
			Status:       status,
			RequestBytes: r.ContentLength,
			Bytes:        rec.bytes,
			DurationMS:   time.Since(start).Milliseconds(),
			RequestID:    GetRequestID(r.Context()),
			KBName:       GetKBName(r.Context()),
			RemoteAddr:   clientIP(r),
			UserAgent:    r.UserAgent(),
		})
		if err != nil {
			log.Printf("access_log_marshal_error: %v", err)
			return
		}
		log.Println(string(payload))
	})
}

func levelFor(status int) string {
	switch {
	case status >= 500:
		return "error"
	case status >= 400:
		return "warn"
	default:
		return "info"
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
