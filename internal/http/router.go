package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates the HTTP router. Pattern and import endpoints are only
// mounted when their stores are configured.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := gin.New()
	router.Use(requestLogger(logger))
	router.Use(gin.Recovery())

	dbCheck := HealthCheck{Name: "database"}
	if cfg.Database != nil {
		dbCheck = DatabaseCheck(cfg.Database)
	}
	checks := []HealthCheck{dbCheck}
	if cfg.MediaDir != "" {
		checks = append(checks, MediaCheck(cfg.MediaDir))
	}
	health := NewHealthController(cfg.Version, checks...)
	router.GET("/health", health.Status)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	if cfg.Patterns != nil {
		pc := NewPatternsController(cfg.Patterns, cfg.ImageAttacher, cfg.Media, logger)
		api.GET("/patterns", pc.List)
		api.GET("/patterns/:id", pc.Get)
		api.DELETE("/patterns/:id", pc.Delete)
		if cfg.ImageAttacher != nil {
			api.POST("/patterns/:id/images", pc.AttachImages)
		}
	}
	if cfg.Runs != nil {
		ic := NewImportsController(cfg.Tasks, cfg.Runs, logger)
		api.GET("/imports", ic.Recent)
		api.GET("/imports/:run_id", ic.Get)
		api.POST("/imports", ic.Enqueue)
		api.GET("/tasks/:id", ic.TaskStatus)
	}

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
