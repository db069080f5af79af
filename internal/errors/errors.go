// Package errors provides structured error types for graphbench.
// Every error carries a category, a code, and a message so the HTTP layer
// can map failures to status codes without string matching.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory classifies errors by the component that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation  ErrorCategory = "VALIDATION"
	ErrCategoryNotFound    ErrorCategory = "NOT_FOUND"
	ErrCategorySQL         ErrorCategory = "SQL"
	ErrCategoryGraph       ErrorCategory = "GRAPH"
	ErrCategoryActivityLog ErrorCategory = "ACTIVITY_LOG"
	ErrCategoryStorage     ErrorCategory = "STORAGE"
	ErrCategoryInternal    ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidParams  = "INVALID_PARAMS"
	CodeUnknownKind    = "UNKNOWN_KIND"
	CodeEmptyUserPool  = "EMPTY_USER_POOL"

	// Not found codes
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodePostNotFound        = "POST_NOT_FOUND"
	CodeCorrelationNotFound = "CORRELATION_NOT_FOUND"
	CodeReportNotFound      = "REPORT_NOT_FOUND"

	// Engine codes
	CodeExecFailed   = "EXEC_FAILED"
	CodeQueryFailed  = "QUERY_FAILED"
	CodeCacheFailed  = "CACHE_CLEAR_FAILED"
	CodeSchemaFailed = "SCHEMA_FAILED"

	// Activity log codes
	CodeRecordFailed    = "RECORD_FAILED"
	CodeAggregateFailed = "AGGREGATE_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
	CodeBusy       = "BUSY"
)

// BenchError is the structured error type used throughout the system.
type BenchError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
}

// Error returns a formatted error string.
func (e *BenchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *BenchError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *BenchError) Is(target error) bool {
	var t *BenchError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new BenchError.
func New(category ErrorCategory, code, message string) *BenchError {
	return &BenchError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// Wrap creates a new BenchError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *BenchError {
	return &BenchError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *BenchError) WithDetails(details map[string]interface{}) *BenchError {
	cp := *e
	cp.Details = details
	return &cp
}

// GetDetails extracts the details of a BenchError from an error chain.
func GetDetails(err error) map[string]interface{} {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Details
	}
	return nil
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a BenchError.
func GetCategory(err error) ErrorCategory {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a BenchError.
func GetCode(err error) string {
	var be *BenchError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// HTTPStatus maps an error chain to the status code the API answers with.
func HTTPStatus(err error) int {
	switch GetCategory(err) {
	case ErrCategoryValidation:
		return http.StatusBadRequest
	case ErrCategoryNotFound:
		return http.StatusNotFound
	case ErrCategoryInternal:
		if GetCode(err) == CodeBusy {
			return http.StatusConflict
		}
		return http.StatusInternalServerError
	case ErrCategorySQL, ErrCategoryGraph, ErrCategoryActivityLog, ErrCategoryStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *BenchError {
	return New(ErrCategoryValidation, code, message)
}

func NewNotFoundError(code, message string) *BenchError {
	return New(ErrCategoryNotFound, code, message)
}

func NewSQLError(code, message string, cause error) *BenchError {
	return Wrap(ErrCategorySQL, code, message, cause)
}

func NewGraphError(code, message string, cause error) *BenchError {
	return Wrap(ErrCategoryGraph, code, message, cause)
}

func NewActivityLogError(code, message string, cause error) *BenchError {
	return Wrap(ErrCategoryActivityLog, code, message, cause)
}

func NewStorageError(code, message string, cause error) *BenchError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *BenchError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
