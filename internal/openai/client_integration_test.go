//go:build integration

package openai

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_GenerateEmbedding_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	embedding, err := client.GenerateEmbedding(context.Background(), "This is a test document for generating embeddings.")

	require.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
}

func TestIntegration_StreamChat_Groq(t *testing.T) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		t.Skip("GROQ_API_KEY not set, skipping integration test")
	}

	client := NewClientWithConfig(Config{ChatAPIKey: apiKey, ChatBaseURL: GroqBaseURL})
	var sb strings.Builder
	for delta, err := range client.StreamChat(context.Background(), "", []ChatMessage{{Role: "user", Content: "Reply with the word pong."}}) {
		require.NoError(t, err)
		sb.WriteString(delta)
	}

	assert.NotEmpty(t, sb.String())
}
