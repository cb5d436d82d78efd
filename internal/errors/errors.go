// Package errors provides structured error types for the seafilter system.
// All errors include a category, code, message, and recoverable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryFormat     ErrorCategory = "FORMAT"
	ErrCategoryWrite      ErrorCategory = "WRITE"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryDB         ErrorCategory = "DB"
	ErrCategoryPipeline   ErrorCategory = "PIPELINE"
)

// Error codes for each category.
const (
	// Validation codes
	CodeNoFiles       = "NO_FILES"
	CodeBadWorkers    = "BAD_WORKERS"
	CodeBadResolution = "BAD_RESOLUTION"
	CodeBadParams     = "BAD_PARAMS"
	CodeBadConfig     = "BAD_CONFIG"

	// Format codes
	CodeEmptyFile    = "EMPTY_FILE"
	CodeShortHeader  = "SHORT_HEADER"
	CodeZeroRows     = "ZERO_ROWS"
	CodeTruncated    = "TRUNCATED"
	CodeSizeMismatch = "SIZE_MISMATCH"

	// Write codes
	CodeOppWriteFailed = "OPP_WRITE_FAILED"

	// Storage codes
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// DB codes
	CodeOpenFailed      = "OPEN_FAILED"
	CodeNoFilterParams  = "NO_FILTER_PARAMS"
	CodeSaveFailed      = "SAVE_FAILED"

	// Pipeline codes
	CodeStall        = "STALL"
	CodeQueueFailure = "QUEUE_FAILURE"
)

// FilterError is the structured error type used throughout the system.
// Per-file errors (FORMAT, WRITE) are recoverable: the pipeline records
// them and keeps going. PIPELINE errors are fatal.
type FilterError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *FilterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *FilterError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *FilterError) Is(target error) bool {
	var t *FilterError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new FilterError.
func New(category ErrorCategory, code, message string) *FilterError {
	return &FilterError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new FilterError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *FilterError {
	return &FilterError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var fe *FilterError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a FilterError.
func GetCategory(err error) ErrorCategory {
	var fe *FilterError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a FilterError.
func GetCode(err error) string {
	var fe *FilterError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// IsRecoverable reports whether an error is a per-file condition the
// pipeline should record and continue past, rather than abort on.
func IsRecoverable(err error) bool {
	switch GetCategory(err) {
	case ErrCategoryFormat, ErrCategoryWrite:
		return true
	}
	return false
}

// isRetryable marks transient storage conditions worth retrying.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *FilterError {
	return New(ErrCategoryValidation, code, message)
}

func NewFormatError(code, message string) *FilterError {
	return New(ErrCategoryFormat, code, message)
}

func NewWriteError(message string, cause error) *FilterError {
	return Wrap(ErrCategoryWrite, CodeOppWriteFailed, message, cause)
}

func NewStorageError(code, message string, cause error) *FilterError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewDBError(code, message string, cause error) *FilterError {
	return Wrap(ErrCategoryDB, code, message, cause)
}

func NewPipelineError(code, message string) *FilterError {
	return New(ErrCategoryPipeline, code, message)
}
