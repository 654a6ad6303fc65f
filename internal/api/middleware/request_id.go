package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	kbNameKey    contextKey = "kb_name"
)

// kbNameSlot lets a handler report the knowledge base it served back to the
// logging middleware that wraps it.
type kbNameSlot struct {
	name string
}

// RequestID injects a request ID into context and response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = context.WithValue(ctx, kbNameKey, &kbNameSlot{})
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request ID from context.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// SetKBName records the knowledge base a request resolved to.
func SetKBName(ctx context.Context, name string) {
	if slot, ok := ctx.Value(kbNameKey).(*kbNameSlot); ok {
		slot.name = name
	}
}

// GetKBName returns the knowledge base recorded by SetKBName.
func GetKBName(ctx context.Context) string {
	if slot, ok := ctx.Value(kbNameKey).(*kbNameSlot); ok {
		return slot.name
	}
	return ""
}
