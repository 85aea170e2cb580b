package control

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quotesync/quotesync/internal/logging"
	"github.com/quotesync/quotesync/internal/metrics"
)

func SetupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", handler.HealthCheck)

	// Poller
	router.GET("/status", handler.Status)
	router.POST("/pause", handler.Pause)
	router.POST("/resume", handler.Resume)
	router.POST("/check", handler.Check)

	// Toasts
	router.GET("/toasts", handler.ListToasts)
	router.DELETE("/toasts/:id", handler.DismissToast)

	// Page model
	router.GET("/page", handler.GetPage)
	router.PUT("/page", handler.SetPage)
	router.PUT("/page/rows/:key", handler.PutRow)
	router.DELETE("/page/rows/:key", handler.DeleteRow)
	router.POST("/page/prompt/accept", handler.AcceptPrompt)
	router.POST("/page/prompt/dismiss", handler.DismissPrompt)

	router.GET("/history", handler.History)

	if handler.deps.Metrics {
		router.GET("/metrics", gin.WrapH(metrics.PromHandler()))
		router.GET("/stats", gin.WrapH(metrics.JSONHandler()))
	}
	return router
}

// requestLogger logs each request through the component logger instead of
// gin's default stdout writer.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Component("control").Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}
