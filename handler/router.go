package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AnTengye/orderledger/config"
	"github.com/AnTengye/orderledger/middleware"
	"github.com/AnTengye/orderledger/service"
)

// NewRouter builds the HTTP surface over the pipeline. backup may be nil.
func NewRouter(cfg *config.Config, pipeline *service.Pipeline, backup *service.BackupService) *gin.Engine {
	authHandler := NewAuthHandler(cfg)
	orderHandler := NewOrderHandler(pipeline, backup)

	router := gin.New()
	router.MaxMultipartMemory = MaxImageSize

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(noStore())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// One limiter for the whole API: keyed by client IP before login and by
	// operator after.
	limit := middleware.RateLimit(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)

	api := router.Group("/api")
	api.POST("/auth/login", limit, authHandler.Login)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth), limit)
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/orders/text", orderHandler.SubmitText)
		protected.POST("/orders/image", orderHandler.SubmitImage)
		protected.POST("/orders/extraction", orderHandler.SubmitExtraction)
		protected.POST("/orders/manual", orderHandler.SubmitManual)
		protected.GET("/orders/search", orderHandler.Search)
		protected.GET("/orders/export", orderHandler.Export)

		protected.GET("/products", orderHandler.Stock)
		protected.GET("/stats", orderHandler.Stats)

		protected.POST("/ledgers/backup", orderHandler.Backup)
	}

	return router
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// noStore keeps ledger data out of shared caches.
func noStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		c.Header("Pragma", "no-cache")
		c.Header("Expires", "0")
		c.Next()
	}
}
