// Package telemetry wires Sentry tracing into the upload, chat and clear paths.
package telemetry

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cloo-solutions/kbrelay/internal/domain"
	"github.com/getsentry/sentry-go"
)

const serviceName = "kbrelay"

type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry and returns a flush function. An empty DSN, or a
// client that fails to initialize, leaves tracing disabled.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if ctx.Span.Name == "GET /health" {
				return 0.0
			}
			var emptySpanID sentry.SpanID
			if ctx.Span.ParentSpanID != emptySpanID {
				if ctx.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return cfg.TracesSampleRate
		}),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// SpanAttributes tag a knowledge base operation.
type SpanAttributes struct {
	KBName    string
	RunID     string
	Filename  string
	Operation string
}

type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetRunID tags the span once the conversation run has been resolved.
func (s *Span) SetRunID(runID string) {
	if s.inner != nil && runID != "" {
		s.inner.SetTag("run_id", runID)
	}
}

// SetError sets the span status from the error's domain code. Only
// upstream and internal failures are reported as exceptions; validation
// and not-found outcomes are client errors.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = statusForError(err)
	if !reportable(err) {
		return
	}
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

func (s *Span) Context() context.Context {
	if s.inner != nil {
		return s.inner.Context()
	}
	return context.Background()
}

func statusForError(err error) sentry.SpanStatus {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return sentry.SpanStatusInternalError
	}
	switch de.Code {
	case domain.ErrCodeValidation:
		return sentry.SpanStatusInvalidArgument
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound
	case domain.ErrCodeReadFailure:
		return sentry.SpanStatusFailedPrecondition
	case domain.ErrCodeUpstream:
		return sentry.SpanStatusUnavailable
	case domain.ErrCodeTimeout:
		return sentry.SpanStatusDeadlineExceeded
	default:
		return sentry.SpanStatusInternalError
	}
}

func reportable(err error) bool {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return true
	}
	switch de.Code {
	case domain.ErrCodeValidation, domain.ErrCodeNotFound:
		return false
	}
	return true
}

// StartSpan starts a child of the span already in ctx (normally the HTTP
// transaction), or a new transaction when there is none.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.KBName != "" {
		span.SetTag("kb_name", attrs.KBName)
	}
	if attrs.RunID != "" {
		span.SetTag("run_id", attrs.RunID)
	}
	if attrs.Filename != "" {
		span.SetData("filename", attrs.Filename)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}

	return span.Context(), &Span{inner: span}
}

// AddBreadcrumb records a step (a file ingested, a run resolved) on the
// current scope.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
	} else {
		sentry.AddBreadcrumb(breadcrumb)
	}
}
