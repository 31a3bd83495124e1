package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
)

const (
	CodeNotFound     = "NOT_FOUND"
	CodeForbidden    = "FORBIDDEN"
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeConflict     = "CONFLICT"
	CodeTransient    = "TRANSIENT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeInternal     = "INTERNAL_ERROR"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable 仅瞬时错误可由调用方重试
func (e *AppError) Retryable() bool {
	return e.Code == CodeTransient
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, err)
}

func Forbidden(message string, err error) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden, err)
}

func Validation(message string, err error) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest, err)
}

func Unauthorized(message string, err error) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict, nil)
}

func Transient(message string, err error) *AppError {
	return New(CodeTransient, message, http.StatusServiceUnavailable, err)
}

func RateLimited() *AppError {
	return New(CodeRateLimited, "too many requests", http.StatusTooManyRequests, nil)
}

func Internal(message string, err error) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError, err)
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsTransient(err error) bool {
	return Is(err, CodeTransient)
}

// FromStore 将存储层错误归类为瞬时错误或内部错误
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if isTransientStoreError(err) {
		return Transient(op+" timed out, please retry", err)
	}
	return Internal(op+" failed", err)
}

func isTransientStoreError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// Response HTTP 错误响应体 {"error": {...}}
type Response struct {
	Error ResponseDetail `json:"error"`
}

type ResponseDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ToResponse 未分类的错误按内部错误处理, 不暴露原始信息
func ToResponse(err error) (int, Response) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Internal("internal server error", err)
	}
	return appErr.Status, Response{Error: ResponseDetail{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Retryable: appErr.Retryable(),
	}}
}
