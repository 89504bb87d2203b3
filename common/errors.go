package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Error codes returned in every JSON error body.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidOtp         = "INVALID_OTP"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL"
)

// AppError is an error that knows how it should be reported to the client.
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func ErrValidation(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg}
}

func ErrInvalidOtp(msg string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: CodeInvalidOtp, Message: msg}
}

func ErrInvalidCredentials() *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeInvalidCredentials, Message: "Invalid credentials"}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: msg}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func ErrNotFound(msg string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func ErrConflict(msg string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: CodeConflict, Message: msg}
}

func ErrRateLimited(msg string) *AppError {
	return &AppError{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: msg}
}

// ErrInternal wraps an unexpected store, mail or crypto failure.
func ErrInternal(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "Something went wrong", Err: err}
}

// NotFoundOr maps gorm.ErrRecordNotFound to a NotFound error with msg and
// anything else to Internal.
func NotFoundOr(err error, msg string) *AppError {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound(msg)
	}
	return ErrInternal(err)
}

// RespondError writes err as a JSON error body and aborts the request.
func RespondError(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = ErrInternal(err)
	}

	if appErr.Status >= http.StatusInternalServerError {
		logger := Logger("http")
		logger.Error().
			Err(err).
			Str(REQUEST_ID, c.GetString(REQUEST_ID)).
			Str("path", c.FullPath()).
			Msg("request failed")
	}

	c.AbortWithStatusJSON(appErr.Status, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}
