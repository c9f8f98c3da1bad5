// Package errors provides structured error handling for spanlabel.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (database, locks, files)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates database, lock and file errors.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates rejected input.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStoreOpen          = "ERR_201_STORE_OPEN"
	ErrCodeStoreIO            = "ERR_202_STORE_IO"
	ErrCodeStoreLocked        = "ERR_203_STORE_LOCKED"
	ErrCodeDocumentNotFound   = "ERR_204_DOCUMENT_NOT_FOUND"
	ErrCodeAnnotationNotFound = "ERR_205_ANNOTATION_NOT_FOUND"
	ErrCodeLabelNotFound      = "ERR_206_LABEL_NOT_FOUND"
	ErrCodeStoreCorrupt       = "ERR_207_STORE_CORRUPT"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidSpan   = "ERR_402_INVALID_SPAN"
	ErrCodeDuplicateSpan = "ERR_403_DUPLICATE_SPAN"
	ErrCodeDuplicateName = "ERR_404_DUPLICATE_NAME"
	ErrCodeNoActive      = "ERR_405_NO_ACTIVE"

	// Internal errors (500-599)
	ErrCodeInternal  = "ERR_501_INTERNAL"
	ErrCodeInvariant = "ERR_502_INVARIANT"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreCorrupt, ErrCodeInvariant:
		return SeverityFatal
	}

	// A locked store usually frees up within a few retries.
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	return code == ErrCodeStoreLocked
}
