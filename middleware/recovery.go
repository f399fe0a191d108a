package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/orderledger/pkg/apperr"
	"github.com/AnTengye/orderledger/pkg/logger"
)

// Recovery turns a panic in a handler into an internal AppError. The
// operator gets the generic message; the panic value and stack are logged.
// If the handler already started the response only the abort happens.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			err := apperr.Wrap(fmt.Errorf("panic: %v", rec))
			logger.Error(c.Request.Context(), "panic recovered",
				"error", err,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"stack", string(debug.Stack()),
			)
			_ = c.Error(err)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      apperr.PublicMessage(err),
				"request_id": GetRequestID(c),
			})
		}()

		c.Next()
	}
}
