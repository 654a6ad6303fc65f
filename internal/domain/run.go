package domain

import (
	"fmt"
	"time"
)

// MessageRole identifies the author of a run message
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Run is a persisted conversation context tied to one knowledge base.
type Run struct {
	ID              string
	UserID          string
	LLMModel        string
	EmbeddingsModel string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Message is one turn stored against a run
type Message struct {
	RunID     string
	Role      MessageRole
	Content   string
	CreatedAt time.Time
}

// ValidateRun validates a Run instance
func ValidateRun(r *Run) error {
	if r == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if r.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("run UserID is required")
	}
	return nil
}

// IsValidMessageRole checks if a MessageRole is valid
func IsValidMessageRole(role MessageRole) bool {
	switch role {
	case MessageRoleSystem, MessageRoleUser, MessageRoleAssistant:
		return true
	}
	return false
}
