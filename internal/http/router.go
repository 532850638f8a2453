package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/neurobridge-coursegen/internal/http/handlers"
	httpMW "github.com/yungbote/neurobridge-coursegen/internal/http/middleware"
	"github.com/yungbote/neurobridge-coursegen/internal/observability"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	ServiceName string
	Metrics     *observability.Metrics

	GenerationHandler *httpH.GenerationHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.GenerationHandler != nil {
		gens := api.Group("/course-generations")
		gens.POST("", cfg.GenerationHandler.Create)
		gens.GET("", cfg.GenerationHandler.List)
		gens.GET("/:id", cfg.GenerationHandler.Get)
		gens.GET("/:id/checkpoints", cfg.GenerationHandler.Checkpoints)
		gens.GET("/:id/events", cfg.GenerationHandler.Events)
		gens.POST("/:id/cancel", cfg.GenerationHandler.Cancel)
	}

	return r
}
