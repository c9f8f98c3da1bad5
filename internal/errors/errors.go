package errors

import (
	stderrors "errors"
	"fmt"
)

// SpanError is the structured error type for spanlabel.
// It carries enough context for logging, CLI output and MCP tool results.
type SpanError struct {
	// Code is the unique error code (e.g., "ERR_403_DUPLICATE_SPAN").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SpanError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SpanError) Unwrap() error {
	return e.Cause
}

// Is matches another SpanError by code, so errors.Is(err, &SpanError{Code: c})
// works as a code check.
func (e *SpanError) Is(target error) bool {
	if t, ok := target.(*SpanError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SpanError) WithDetail(key, value string) *SpanError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SpanError) WithSuggestion(suggestion string) *SpanError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SpanError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SpanError {
	return &SpanError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SpanError from an existing error.
// The error's message becomes the SpanError message.
func Wrap(code string, err error) *SpanError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SpanError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError creates a storage I/O error.
func StoreError(message string, cause error) *SpanError {
	return New(ErrCodeStoreIO, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SpanError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SpanError {
	return New(ErrCodeInternal, message, cause)
}

// InvariantError reports a broken internal invariant of the annotation engine.
func InvariantError(message string, cause error) *SpanError {
	return New(ErrCodeInvariant, message, cause)
}

// NotFound creates a not-found error for the given code and subject.
func NotFound(code, subject string) *SpanError {
	return New(code, subject+" not found", nil)
}

// as finds the first SpanError in err's chain.
func as(err error) (*SpanError, bool) {
	var se *SpanError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// HasCode reports whether any SpanError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		se, ok := as(err)
		if !ok {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Cause
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if se, ok := as(err); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if se, ok := as(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first SpanError in err's chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if se, ok := as(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from the first SpanError in err's chain.
func GetCategory(err error) Category {
	if se, ok := as(err); ok {
		return se.Category
	}
	return ""
}
