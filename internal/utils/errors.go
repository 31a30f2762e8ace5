package utils

import (
	"fmt"
	"net/http"
)

const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Kind groups error codes by the HTTP status they map to.
type Kind int

const (
	KindInvalid Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindInternal
	KindUnavailable
)

var kindStatus = map[Kind]int{
	KindInvalid:      http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindRateLimited:  http.StatusTooManyRequests,
	KindInternal:     http.StatusInternalServerError,
	KindUnavailable:  http.StatusServiceUnavailable,
}

// AppError is a domain rejection carrying a stable string code.
type AppError struct {
	Kind    Kind
	Code    string
	Message string
	Details interface{}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Status() int {
	if s, ok := kindStatus[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Is matches on code so callers can compare against a sentinel built with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func NewError(kind Kind, code, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

func Invalid(code, message string) *AppError {
	return NewError(KindInvalid, code, message)
}

func Unauthorized(code, message string) *AppError {
	return NewError(KindUnauthorized, code, message)
}

func Forbidden(code, message string) *AppError {
	return NewError(KindForbidden, code, message)
}

func NotFound(code, message string) *AppError {
	return NewError(KindNotFound, code, message)
}

func Conflict(code, message string) *AppError {
	return NewError(KindConflict, code, message)
}

// Unavailable reports a dependency that is disabled or not answering.
func Unavailable(code, message string) *AppError {
	return NewError(KindUnavailable, code, message)
}

func RateLimited(message string) *AppError {
	return NewError(KindRateLimited, CodeRateLimitExceeded, message)
}

// CodeOf returns the code of an *AppError in err's chain, or "".
func CodeOf(err error) string {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
