// Package api exposes order status and control over HTTP.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bond-reversion-lab/internal/observability"
)

// Deps are the services behind the HTTP routes.
type Deps struct {
	Orders          *OrderHandler
	Recommendations *RecommendationHandler
	Health          *HealthHandler
	Gatherer        prometheus.Gatherer
	Logger          *zap.Logger
	Debug           bool
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	if d.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Health == nil {
		d.Health = &HealthHandler{}
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(d.Logger))

	d.Health.Register(engine)
	engine.GET("/metrics", gin.WrapH(observability.Handler(d.Gatherer)))
	if d.Orders != nil {
		d.Orders.Register(engine)
	}
	if d.Recommendations != nil {
		d.Recommendations.Register(engine)
	}
	return engine
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
