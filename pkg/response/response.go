package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-ingest/pkg/apperr"
)

type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func Success(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func Error(c *gin.Context, statusCode int, code, message, details string) {
	ErrorWithData(c, statusCode, code, message, details, nil)
}

// ErrorWithData is Error with a payload, used when the caller needs
// correlation data such as an import session id.
func ErrorWithData(c *gin.Context, statusCode int, code, message, details string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    data,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func BadRequest(c *gin.Context, message, details string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

func InternalError(c *gin.Context, message, details string) {
	Error(c, http.StatusInternalServerError, apperr.CodeInternal, message, details)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, apperr.CodeNotFound, message, "")
}

func ValidationError(c *gin.Context, details string) {
	Error(c, http.StatusUnprocessableEntity, apperr.CodeValidation, "Validation failed", details)
}

// StatusFor maps an engine error kind to an HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindMalformedInput, apperr.KindDependencyNotSatisfied:
		return http.StatusBadRequest
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindDuplicateKey:
		return http.StatusConflict
	case apperr.KindConcurrencyRejected:
		return http.StatusTooManyRequests
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes the envelope for an engine error.
func FromError(c *gin.Context, err error, data interface{}) {
	message := err.Error()
	var details string
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
		if appErr.Cause != nil {
			details = appErr.Cause.Error()
		}
	}
	ErrorWithData(c, StatusFor(err), apperr.CodeOf(err), message, details, data)
}
