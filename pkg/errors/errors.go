package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Custom error types for better error handling
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrUnauthorized       = errors.New("authentication required")
	ErrAccountLocked      = errors.New("account is temporarily locked")

	// Authorization errors
	ErrForbidden   = errors.New("forbidden")
	ErrDiaryLocked = errors.New("diary is locked")

	// Validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrWeakPassword    = errors.New("password must be between 6 and 128 characters")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidUsername = errors.New("username must be 3-30 letters, digits or underscores")

	// Database errors
	ErrDatabaseConnection = errors.New("database connection failed")
	ErrTransactionFailed  = errors.New("transaction failed")
	ErrRecordNotFound     = errors.New("record not found")
	ErrConflict           = errors.New("conflict")

	// Encryption errors
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidKey       = errors.New("invalid encryption key")

	// Rate limiting errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// Upload errors
	ErrFileTooLarge     = errors.New("file too large")
	ErrUnsupportedMedia = errors.New("unsupported file type")

	// Backup errors
	ErrBackupFailed  = errors.New("backup operation failed")
	ErrRestoreFailed = errors.New("restore operation failed")
)

// AppError wraps errors with additional context
type AppError struct {
	Err     error
	Message string
	Code    int
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error
func NewAppError(err error, message string, code int) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// Validation reports caller-fixable input problems.
func Validation(message string) *AppError {
	return NewAppError(ErrInvalidInput, message, http.StatusBadRequest)
}

// NotFound is used both for missing rows and rows owned by someone else.
func NotFound(resource string) *AppError {
	return NewAppError(ErrRecordNotFound, resource+" not found", http.StatusNotFound)
}

func Conflict(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict)
}

func Unauthorized(message string) *AppError {
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(ErrForbidden, message, http.StatusForbidden)
}

func TooManyRequests(message string) *AppError {
	return NewAppError(ErrRateLimitExceeded, message, http.StatusTooManyRequests)
}

// sentinelStatus maps bare sentinels to HTTP status codes when they
// reach the API boundary without an AppError wrapper.
var sentinelStatus = []struct {
	err  error
	code int
}{
	{ErrRecordNotFound, http.StatusNotFound},
	{ErrUserNotFound, http.StatusNotFound},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrAccountLocked, http.StatusTooManyRequests},
	{ErrRateLimitExceeded, http.StatusTooManyRequests},
	{ErrDiaryLocked, http.StatusForbidden},
	{ErrForbidden, http.StatusForbidden},
	{ErrUserAlreadyExists, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrWeakPassword, http.StatusBadRequest},
	{ErrInvalidEmail, http.StatusBadRequest},
	{ErrInvalidUsername, http.StatusBadRequest},
	{ErrFileTooLarge, http.StatusRequestEntityTooLarge},
	{ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
}

// StatusOf returns the HTTP status for err and the message that is safe
// to show a client. Unknown errors collapse to 500 with a generic text.
func StatusOf(err error) (int, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if msg == "" {
			msg = appErr.Err.Error()
		}
		return appErr.Code, msg
	}

	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.code, s.err.Error()
		}
	}

	return http.StatusInternalServerError, "internal server error"
}

// Is and As are re-exported so callers need only one errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
