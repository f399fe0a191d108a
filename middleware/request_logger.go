package middleware

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/orderledger/model"
	"github.com/AnTengye/orderledger/pkg/apperr"
	"github.com/AnTengye/orderledger/pkg/logger"
)

const orderIDKey = "order_id"

// NoteOrder records the order a request produced so the access log line
// carries its number.
func NoteOrder(c *gin.Context, id int) {
	c.Set(orderIDKey, id)
}

// RequestLogger writes one access line per request through the context
// logger, so request id and operator come along. The level follows the
// status; a failed submission is tagged with the AppError kind so
// extraction and validation rejections can be told apart in the logs.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id := c.GetInt(orderIDKey); id > 0 {
			attrs = append(attrs, "order", model.OrderNumberFor(id))
		}
		if kind := errorKind(c); kind != "" {
			attrs = append(attrs, "error_kind", kind)
		}
		// Search terms are customer phones and names: parameter names only.
		if params := c.Request.URL.Query(); len(params) > 0 {
			keys := make([]string, 0, len(params))
			for k := range params {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			attrs = append(attrs, "query_params", strings.Join(keys, ","))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.WithContext(c.Request.Context()).Log(c.Request.Context(), level, "request completed", attrs...)
	}
}

// errorKind reports the kind of the last AppError attached to the request.
func errorKind(c *gin.Context) apperr.Kind {
	for i := len(c.Errors) - 1; i >= 0; i-- {
		if ae, ok := apperr.As(c.Errors[i].Err); ok {
			return ae.Kind
		}
	}
	return ""
}
