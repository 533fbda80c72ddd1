package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ledger-ingest/pkg/logger"
	"ledger-ingest/pkg/response"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().WithFields(map[string]interface{}{
					"error":      err,
					"request_id": c.GetString(RequestIDKey),
					"path":       c.Request.URL.Path,
				}).Error("Panic recovered")
				response.InternalError(c, "Internal server error", "An unexpected error occurred")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// ErrorHandler answers requests whose handler recorded an error with
// c.Error but wrote no response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			logger.GetLogger().WithError(err.Err).WithField("request_id", c.GetString(RequestIDKey)).Error("Request error")

			if !c.Writer.Written() {
				response.FromError(c, err.Err, nil)
			}
		}
	}
}

// NoRoute answers unknown paths with the standard envelope.
func NoRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found", c.Request.URL.Path)
	}
}
