package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicer/internal/domain"
	"invoicer/internal/logger"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondAccepted sends a 202 success response.
func RespondAccepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "session not found"
	case errors.Is(err, domain.ErrSessionTerminal):
		return http.StatusBadRequest, "SESSION_TERMINAL", "session already finished"
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict, "SESSION_BUSY", "session is still processing"
	case errors.Is(err, domain.ErrArchiveNotReady):
		return http.StatusBadRequest, "ARCHIVE_NOT_READY", "processing not completed"
	case errors.Is(err, domain.ErrArchiveNotFound):
		return http.StatusNotFound, "ARCHIVE_NOT_FOUND", "result archive not found"
	case errors.Is(err, domain.ErrNoFailedFiles):
		return http.StatusBadRequest, "NO_FAILED_FILES", "no failed files to retry"
	case errors.Is(err, domain.ErrNoProviderAvailable):
		return http.StatusServiceUnavailable, "NO_PROVIDER_AVAILABLE",
			"no provider available; configure OpenRouter API key or start LM Studio"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, zip"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrInvalidSettings):
		return http.StatusBadRequest, "INVALID_SETTINGS", err.Error()
	case errors.Is(err, domain.ErrUnsupportedReport):
		return http.StatusBadRequest, "UNSUPPORTED_REPORT_FORMAT", "unsupported report format; allowed: csv, xlsx"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	if status >= http.StatusInternalServerError {
		logger.C(c.Request.Context()).Error().Err(err).
			Str("path", c.Request.URL.Path).Msg("handler: internal error")
	}
	RespondError(c, status, code, msg)
}
