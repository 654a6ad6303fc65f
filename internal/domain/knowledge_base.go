package domain

import (
	"strings"
)

// DefaultKnowledgeBaseName is used when an upload does not name a knowledge base.
const DefaultKnowledgeBaseName = "General-Domain"

// MaxKBNameLength bounds the length of a knowledge base name in bytes.
const MaxKBNameLength = 128

// KnowledgeBase is a named partition of uploaded content and its vector collection.
type KnowledgeBase struct {
	Name string
	Path string
}

// ResolveKBName returns name, or fallback when name is blank.
func ResolveKBName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

// ValidateKBName checks that name can be used as a single directory component.
func ValidateKBName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingParameter
	}
	if len(name) > MaxKBNameLength {
		return ErrInvalidKBName
	}
	if name == "." || name == ".." {
		return ErrInvalidKBName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return ErrInvalidKBName
	}
	return nil
}
