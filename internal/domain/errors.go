package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so sentinels still match after WithCause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithCause returns a copy of the error carrying err as its cause.
func (e *DomainError) WithCause(err error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, err)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeReadFailure   = "READ_FAILURE"
	ErrCodeUpstream      = "UPSTREAM_ERROR"
	ErrCodeTimeout       = "TIMEOUT"
)

// Validation errors
var (
	ErrMissingParameter = NewDomainError(ErrCodeValidation, "Missing parameters in request")
	ErrInvalidKBName    = NewDomainError(ErrCodeValidation, "invalid knowledge base name")
	ErrInvalidFilename  = NewDomainError(ErrCodeValidation, "invalid filename")
)

// Not found errors
var (
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base does not exist")
	ErrRunNotFound           = NewDomainError(ErrCodeNotFound, "run not found")
)

// Ingestion errors
var (
	ErrReadFailure = NewDomainError(ErrCodeReadFailure, "could not read document")
)

// External collaborator errors
var (
	ErrVectorStoreFailure = NewDomainError(ErrCodeUpstream, "vector store operation failed")
	ErrRunStorageFailure  = NewDomainError(ErrCodeUpstream, "run storage operation failed")
	ErrLLMFailure         = NewDomainError(ErrCodeUpstream, "llm request failed")
	ErrEmbeddingFailure   = NewDomainError(ErrCodeUpstream, "embedding request failed")
	ErrChatTimeout        = NewDomainError(ErrCodeTimeout, "chat request timed out")
)

// Operation errors
var (
	ErrRunNotBound = NewDomainError(ErrCodeInternalError, "assistant is not bound to a run")
)
