package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// auth
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeTokenExpired = "TOKEN_EXPIRED"

	// request validation
	CodeBadRequest   = "BAD_REQUEST"
	CodeInvalidInput = "INVALID_INPUT"
	CodeMissingField = "MISSING_FIELD"
	CodeNotFound     = "NOT_FOUND"

	// capabilities and persistence
	CodeExternalError = "EXTERNAL_ERROR"
	CodeStorageError  = "STORAGE_ERROR"
	CodeEmptyContent  = "EMPTY_CONTENT"

	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
	CodeTimeout       = "TIMEOUT"
)

// AppError is the coded error carried from services to the HTTP layer and CLI.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return "[" + e.Code + "] " + e.Message
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches on the code: errors.Is(err, ErrConfig) holds for every config error.
func (e *AppError) Is(target error) bool {
	var t *AppError
	return errors.As(target, &t) && t.Code == e.Code
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func (e *AppError) HTTPStatus() int { return e.Status }

func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

func InvalidInput(field, reason string) *AppError {
	return New(CodeInvalidInput, "invalid "+field+": "+reason, http.StatusBadRequest).
		WithDetail("field", field)
}

func MissingField(field string) *AppError {
	return New(CodeMissingField, "missing required field: "+field, http.StatusBadRequest).
		WithDetail("field", field)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, resource+" not found", http.StatusNotFound)
}

// ExternalError marks a failed call to a fetch or language-model capability.
func ExternalError(service string, err error) *AppError {
	return New(CodeExternalError, "external service error: "+service, http.StatusBadGateway).
		WithDetail("service", service).
		WithError(err)
}

// StorageError marks a failed registry or snapshot persistence operation.
func StorageError(operation string, err error) *AppError {
	return New(CodeStorageError, "storage operation failed: "+operation, http.StatusInternalServerError).
		WithError(err)
}

func EmptyContent(what string) *AppError {
	return New(CodeEmptyContent, what+" extracted but empty", http.StatusBadGateway)
}

// InternalWithError hides err's message from clients; it stays reachable via Unwrap.
func InternalWithError(err error) *AppError {
	return New(CodeInternalError, "internal server error", http.StatusInternalServerError).WithError(err)
}

func ConfigError(message string) *AppError {
	return New(CodeConfigError, message, http.StatusInternalServerError)
}

func Timeout(operation string) *AppError {
	return New(CodeTimeout, "operation timed out: "+operation, http.StatusGatewayTimeout)
}

// Sentinels for errors.Is.
var (
	ErrConfig   = New(CodeConfigError, "configuration error", http.StatusInternalServerError)
	ErrExternal = New(CodeExternalError, "external service error", http.StatusBadGateway)
	ErrStorage  = New(CodeStorageError, "storage error", http.StatusInternalServerError)
)

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError returns the first AppError in err's chain, or wraps err as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}
