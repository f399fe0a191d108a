package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	router := gin.New()
	router.Use(RequestID(), RequestLogger(), Recovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("nil order")
	})
	router.GET("/late-panic", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("after write")
	})
	router.GET("/normal", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	t.Run("panic before response", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest("GET", "/panic", nil)
		req.Header.Set("X-Request-ID", "upd-7")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected status 500, got %d", w.Code)
		}
		body := w.Body.String()
		if !strings.Contains(body, "Внутренняя ошибка") || !strings.Contains(body, "upd-7") {
			t.Errorf("Expected generic message and request id, got %s", body)
		}
		if strings.Contains(body, "nil order") {
			t.Error("Panic value must not leak into the response")
		}

		logs := buf.String()
		if !strings.Contains(logs, "panic recovered") || !strings.Contains(logs, "nil order") {
			t.Errorf("Expected the panic in the log, got %q", logs)
		}
		if !strings.Contains(logs, "error_kind=internal") || !strings.Contains(logs, "request_id=upd-7") {
			t.Errorf("Expected the access line to carry kind and id, got %q", logs)
		}
	})

	t.Run("panic after response started", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/late-panic", nil))

		if w.Code != http.StatusOK || w.Body.String() != "partial" {
			t.Errorf("Expected the written response untouched, got %d %q", w.Code, w.Body.String())
		}
	})

	t.Run("normal request", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/normal", nil))

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})
}
