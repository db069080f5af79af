package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestBenchError_Error(t *testing.T) {
	err := New(ErrCategoryNotFound, CodePostNotFound, "post 7 not found")
	expected := "[NOT_FOUND:POST_NOT_FOUND] post 7 not found"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBenchError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := NewSQLError(CodeExecFailed, "insert users", cause)
	expected := "[SQL:EXEC_FAILED] insert users: database is locked"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestBenchError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := NewGraphError(CodeQueryFailed, "fetch posts", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestBenchError_Is(t *testing.T) {
	err1 := New(ErrCategorySQL, CodeExecFailed, "first")
	err2 := New(ErrCategorySQL, CodeExecFailed, "second")
	err3 := New(ErrCategorySQL, CodeQueryFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewActivityLogError(CodeRecordFailed, "insert", nil))
	if got := GetCategory(err); got != ErrCategoryActivityLog {
		t.Errorf("GetCategory = %q", got)
	}
	if got := GetCode(err); got != CodeRecordFailed {
		t.Errorf("GetCode = %q", got)
	}
	if got := GetCategory(fmt.Errorf("plain")); got != "" {
		t.Errorf("plain error category = %q, want empty", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError(CodeInvalidParams, "bad"), http.StatusBadRequest},
		{NewNotFoundError(CodeUserNotFound, "missing"), http.StatusNotFound},
		{NewSQLError(CodeExecFailed, "x", nil), http.StatusBadGateway},
		{NewGraphError(CodeQueryFailed, "x", nil), http.StatusBadGateway},
		{New(ErrCategoryInternal, CodeBusy, "busy"), http.StatusConflict},
		{NewInternalError("x", nil), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWithDetails(t *testing.T) {
	orig := NewValidationError(CodeInvalidParams, "bad scale")
	detailed := orig.WithDetails(map[string]interface{}{"scale": -1})
	if detailed.Details["scale"] != -1 {
		t.Error("details not set")
	}
	if orig.Details != nil {
		t.Error("WithDetails should not mutate the original")
	}

	wrapped := fmt.Errorf("normalize: %w", detailed)
	if GetDetails(wrapped)["scale"] != -1 {
		t.Error("GetDetails should find details through wrapping")
	}
	if GetDetails(errors.New("plain")) != nil {
		t.Error("GetDetails of a plain error should be nil")
	}
}
