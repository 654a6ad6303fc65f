package server

import (
	"net/http"

	"github.com/cloo-solutions/kbrelay/internal/api"
	"github.com/cloo-solutions/kbrelay/internal/api/handlers"
	"github.com/cloo-solutions/kbrelay/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

const (
	// DefaultMaxBodyBytes bounds multipart uploads.
	DefaultMaxBodyBytes int64 = 64 << 20
	// DefaultMaxJSONBytes bounds the JSON bodies of list, chat and clear.
	DefaultMaxJSONBytes int64 = 1 << 20
)

type RouterConfig struct {
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
	AllowedOrigins       []string
	MaxBodyBytes         int64
	MaxJSONBytes         int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	maxJSONBytes := cfg.MaxJSONBytes
	if maxJSONBytes <= 0 {
		maxJSONBytes = DefaultMaxJSONBytes
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	kb := cfg.KnowledgeBaseHandler
	r.With(middleware.MaxBodyBytes(maxBodyBytes)).Post("/receive-file", kb.Upload)
	r.Group(func(r chi.Router) {
		r.Use(middleware.MaxBodyBytes(maxJSONBytes))
		r.Get("/listKB", kb.List)
		r.Post("/chat", kb.Chat)
		r.Post("/clear", kb.Clear)
	})

	return r
}
