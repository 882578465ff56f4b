package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/athro-ingest/internal/http/handlers"
	httpMW "github.com/yungbote/athro-ingest/internal/http/middleware"
	"github.com/yungbote/athro-ingest/internal/observability"
	"github.com/yungbote/athro-ingest/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics

	DocumentHandler *httpH.DocumentHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api/v1")
	{
		// Documents
		if cfg.DocumentHandler != nil {
			docs := api.Group("/documents")
			docs.POST("/extract", cfg.DocumentHandler.Extract)
			docs.POST("/extract/upload", cfg.DocumentHandler.Upload)
			docs.POST("/context", cfg.DocumentHandler.Context)
		}
	}

	return r
}
