package service

import (
	"context"
	"log"
	"strings"

	"github.com/cloo-solutions/kbrelay/internal/telemetry"
)

// QueryRelay sends a prompt into a knowledge base's conversation and
// collects the streamed answer.
type QueryRelay struct {
	sessions *SessionResolver
}

func NewQueryRelay(sessions *SessionResolver) *QueryRelay {
	return &QueryRelay{sessions: sessions}
}

// Relay returns the deltas of the answer concatenated in arrival order.
// Nothing is retried; the first error ends the exchange.
func (q *QueryRelay) Relay(ctx context.Context, kbName, prompt string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryRelay.Relay", telemetry.SpanAttributes{
		KBName:    kbName,
		Operation: "relay",
	})
	defer span.End()

	asst, runID, err := q.sessions.Resolve(ctx, kbName)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	span.SetRunID(runID)

	var response strings.Builder
	for delta, err := range asst.Run(ctx, prompt) {
		if err != nil {
			span.SetError(err)
			return "", err
		}
		response.WriteString(delta)
	}

	log.Printf("chat: run id %s for kb %s", runID, kbName)
	return response.String(), nil
}
