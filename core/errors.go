package core

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every typed error below unwraps to one of these sentinels so
// callers can classify failures with errors.Is.
var (
	// ErrInvalidToolCall reports an unknown tool name or undecodable arguments.
	ErrInvalidToolCall = errors.New("invalid tool call")
	// ErrSchemaValidation reports arguments that do not satisfy the tool schema.
	ErrSchemaValidation = errors.New("schema validation failed")
	// ErrToolInvocation reports network, timeout or upstream failures of a tool.
	ErrToolInvocation = errors.New("tool invocation failed")
	// ErrIterationLimit reports a loop that was forcibly finalized.
	ErrIterationLimit = errors.New("iteration limit reached")
	// ErrParseFailure reports a page or unit that could not be extracted.
	ErrParseFailure = errors.New("parse failure")
	// ErrUnsupportedFormat reports an ingestion input of an unknown format.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrQueryTimeout reports an exhausted per-query wall-clock budget.
	ErrQueryTimeout = errors.New("query timeout")
)

// Tool error codes.
const (
	CodeInvalidToolCall  = "INVALID_TOOL_CALL"
	CodeValidation       = "VALIDATION_ERROR"
	CodeExecution        = "EXECUTION_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodePanic            = "PANIC"
	CodeUpstreamResponse = "UPSTREAM_ERROR"
)

// ToolError represents errors that occur while validating or executing a tool.
type ToolError struct {
	Tool    string `json:"tool"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap maps the error code onto the taxonomy sentinel, or the wrapped cause.
func (e *ToolError) Unwrap() []error {
	var sentinel error
	switch e.Code {
	case CodeInvalidToolCall:
		sentinel = ErrInvalidToolCall
	case CodeValidation:
		sentinel = ErrSchemaValidation
	default:
		sentinel = ErrToolInvocation
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, code, message string, cause error) *ToolError {
	return &ToolError{Tool: tool, Code: code, Message: message, Err: cause}
}

// UnsupportedFormatError is returned before parsing begins for inputs whose
// extension is not one of the supported formats.
type UnsupportedFormatError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q for %s", e.Ext, e.Name)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// ParseError describes a single page or unit failure. Page is zero based, -1
// when the failure is not tied to a page.
type ParseError struct {
	Page int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("parse failure: %v", e.Err)
	}
	return fmt.Sprintf("parse failure on page %d: %v", e.Page+1, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParseFailure, e.Err} }
