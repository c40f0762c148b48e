package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery middleware catches panics, logs them with stack traces, and returns a 500 error
// with correlation ID (if available) to maintain request traceability. Routes that
// answer the payment gateway in plain text get the "fail" literal so the gateway
// redelivers.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				correlationID := GetCorrelationID(c)

				logger.Error("Panic recovered",
					"error", fmt.Sprint(r),
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"correlation_id", correlationID,
				)

				if c.Writer.Written() {
					c.Abort()
					return
				}

				if c.GetBool(PlainTextKey) {
					c.Abort()
					c.String(http.StatusInternalServerError, "fail")
					return
				}

				response := gin.H{
					"success": false,
					"error": gin.H{
						"code":    "INTERNAL_SERVER_ERROR",
						"message": "An internal server error occurred",
					},
				}
				if correlationID != "" {
					response["correlation_id"] = correlationID
				}

				c.AbortWithStatusJSON(http.StatusInternalServerError, response)
			}
		}()

		c.Next()
	}
}

// PlainTextKey marks a request whose error replies must be plain text
const PlainTextKey = "plain_text_errors"

// PlainText marks the route group as answering in plain text
func PlainText() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(PlainTextKey, true)
		c.Next()
	}
}
