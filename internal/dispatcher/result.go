// Package dispatcher implements the tool dispatcher (§4.9): per-tool
// argument validation, polymorphic input normalization, and uniform
// success/error result shaping for the fixed tool catalog in §6.
package dispatcher

import (
	"errors"

	"github.com/scholarmcp/server/internal/domain"
)

// ToolResult is the uniform success envelope: content is the
// text-serialized payload (a JSON string), structuredContent is the same
// payload as a structured value so transports can surface either.
type ToolResult struct {
	Content           string `json:"content"`
	StructuredContent any    `json:"structuredContent"`
}

// ErrorKind names a taxonomy member from §7, surfaced to callers without
// leaking internal error types.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation_error"
	ErrorKindNotFound   ErrorKind = "not_found"
	ErrorKindProvider   ErrorKind = "provider_error"
	ErrorKindIngestion  ErrorKind = "ingestion_error"
	ErrorKindInternal   ErrorKind = "internal_error"
)

// ToolError is the structured error envelope returned in place of a
// ToolResult. It never carries a stack trace or internal type name.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func (e *ToolError) Error() string { return string(e.Kind) + ": " + e.Message }

// classifyError maps a core-component error into a ToolError using the
// domain sentinel taxonomy from internal/domain/errors.go.
func classifyError(err error) *ToolError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err,domain.ErrInvalidInput):
		return &ToolError{Kind: ErrorKindValidation, Message: err.Error()}
	case errors.Is(err,domain.ErrNotFound):
		return &ToolError{Kind: ErrorKindNotFound, Message: err.Error()}
	case errors.Is(err,domain.ErrProvider):
		return &ToolError{Kind: ErrorKindProvider, Message: err.Error()}
	case errors.Is(err,domain.ErrIngestion):
		return &ToolError{Kind: ErrorKindIngestion, Message: err.Error()}
	default:
		return &ToolError{Kind: ErrorKindInternal, Message: "internal error"}
	}
}
