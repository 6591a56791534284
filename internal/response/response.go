package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidArgument   = "INVALID_ARGUMENT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInternal          = "INTERNAL"
	ErrCodeNotSpammed        = "NOT_SPAMMED"
	ErrCodeNotRemoved        = "NOT_REMOVED"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeTooManyRequests   = "TOO_MANY_REQUESTS"
)

// AppError 业务错误，Code 决定 HTTP 状态码
type AppError struct {
	Code    string
	Message string
	Details string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

func NotFound(msg string) *AppError        { return NewAppError(ErrCodeNotFound, msg, "") }
func InvalidArgument(msg string) *AppError { return NewAppError(ErrCodeInvalidArgument, msg, "") }
func Unauthorized(msg string) *AppError    { return NewAppError(ErrCodeUnauthorized, msg, "") }
func Conflict(msg string) *AppError        { return NewAppError(ErrCodeConflict, msg, "") }

func Internal(msg string, err error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: msg, Err: err}
}

// CodeOf 非 AppError 一律视为 INTERNAL
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func HTTPStatus(code string) int {
	switch code {
	case ErrCodeNotFound, ErrCodeNotSpammed, ErrCodeNotRemoved:
		return http.StatusNotFound
	case ErrCodeInvalidArgument, ErrCodeInvalidTransition:
		return http.StatusBadRequest
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func OK(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func Data(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": data})
}

func SendError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"status": "fail", "code": code, "message": message})
}
