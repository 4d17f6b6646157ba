// Package errors provides structured error handling for the host bridge.
// It defines an error type carrying a stable code, a category and a severity
// so callers and event subscribers can react to failures programmatically.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"
)

// Category represents the type/category of an error for classification and handling
type Category string

const (
	CategoryConnection Category = "connection"
	CategoryTimeout    Category = "timeout"
	CategoryHost       Category = "host"
	CategoryPolicy     Category = "policy"
	CategoryValidation Category = "validation"
	CategoryInternal   Category = "internal"
)

// Severity indicates how critical an error is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Context provides additional context about where and when an error occurred
type Context struct {
	RequestID   string    `json:"request_id,omitempty"`
	Operation   string    `json:"operation,omitempty"`
	Component   string    `json:"component,omitempty"`
	Environment string    `json:"environment,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// BridgeError defines the interface for all errors produced by the bridge
type BridgeError interface {
	error

	// Code returns the numeric error code
	Code() int

	// Name returns the stable symbolic name of the code, e.g. MINIMUM_ROSTER_SIZE
	Name() string

	// Message returns a human-readable error message
	Message() string

	// Details returns detailed technical description for debugging
	Details() string

	// Data returns structured error data for programmatic handling
	Data() interface{}

	Category() Category
	Severity() Severity
	Context() *Context

	// WithContext returns a new error with the provided context
	WithContext(ctx *Context) BridgeError

	// WithDetail returns a new error with additional detail
	WithDetail(detail string) BridgeError

	// WithData returns a new error with structured data
	WithData(data interface{}) BridgeError

	// Unwrap returns the underlying error for error chain traversal
	Unwrap() error

	// ToJSON returns the error as a JSON-serializable map
	ToJSON() map[string]interface{}
}

type baseError struct {
	code     int
	message  string
	details  string
	data     interface{}
	category Category
	severity Severity
	context  *Context
	cause    error
}

func (e *baseError) Error() string {
	if e.details != "" {
		return fmt.Sprintf("%s: %s", e.message, e.details)
	}
	return e.message
}

func (e *baseError) Code() int          { return e.code }
func (e *baseError) Name() string       { return CodeName(e.code) }
func (e *baseError) Message() string    { return e.message }
func (e *baseError) Details() string    { return e.details }
func (e *baseError) Data() interface{}  { return e.data }
func (e *baseError) Category() Category { return e.category }
func (e *baseError) Severity() Severity { return e.severity }
func (e *baseError) Context() *Context  { return e.context }
func (e *baseError) Unwrap() error      { return e.cause }

func (e *baseError) WithContext(ctx *Context) BridgeError {
	newErr := *e
	if ctx != nil && ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now()
	}
	newErr.context = ctx
	return &newErr
}

func (e *baseError) WithDetail(detail string) BridgeError {
	newErr := *e
	if newErr.details != "" {
		newErr.details = fmt.Sprintf("%s; %s", newErr.details, detail)
	} else {
		newErr.details = detail
	}
	return &newErr
}

func (e *baseError) WithData(data interface{}) BridgeError {
	newErr := *e
	newErr.data = data
	return &newErr
}

// Is matches another BridgeError with the same code, so sentinel-style
// comparisons through errors.Is work on wrapped chains.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return t.code == e.code
}

func (e *baseError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"code":     e.code,
		"name":     e.Name(),
		"message":  e.message,
		"category": string(e.category),
		"severity": string(e.severity),
	}
	if e.details != "" {
		result["details"] = e.details
	}
	if e.data != nil {
		result["data"] = e.data
	}
	if e.context != nil {
		result["context"] = e.context
	}
	if e.cause != nil {
		result["cause"] = e.cause.Error()
	}
	return result
}

func (e *baseError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSON())
}

// NewError creates a new BridgeError. Category and severity come from the
// code registry.
func NewError(code int, message string) BridgeError {
	info := codeInfo(code)
	return &baseError{
		code:     code,
		message:  message,
		category: info.Category,
		severity: info.Severity,
		context:  &Context{Timestamp: time.Now()},
	}
}

// NewErrorf creates a new BridgeError with a formatted message
func NewErrorf(code int, format string, args ...interface{}) BridgeError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError wraps an existing error as a BridgeError
func WrapError(err error, code int, message string) BridgeError {
	info := codeInfo(code)
	return &baseError{
		code:     code,
		message:  message,
		category: info.Category,
		severity: info.Severity,
		cause:    err,
		context:  &Context{Timestamp: time.Now()},
	}
}

// AsBridgeError finds the first BridgeError in err's chain.
func AsBridgeError(err error) (BridgeError, bool) {
	if err == nil {
		return nil, false
	}
	var be BridgeError
	if stderrors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// CodeOf returns the code of the first BridgeError in err's chain, or
// CodeInternal for foreign errors.
func CodeOf(err error) int {
	if be, ok := AsBridgeError(err); ok {
		return be.Code()
	}
	return CodeInternal
}

// IsCode checks if an error has a specific error code
func IsCode(err error, code int) bool {
	if be, ok := AsBridgeError(err); ok {
		return be.Code() == code
	}
	return false
}

// IsCategory checks if an error is of a specific category
func IsCategory(err error, category Category) bool {
	if be, ok := AsBridgeError(err); ok {
		return be.Category() == category
	}
	return false
}
