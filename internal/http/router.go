package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/atelierhq/roomora-backend/internal/http/handlers"
	httpMW "github.com/atelierhq/roomora-backend/internal/http/middleware"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware
	HealthHandler  *httpH.HealthHandler
	ProjectHandler *httpH.ProjectHandler

	// ArtifactDir, when set, is served under /artifacts so rendered design
	// images resolve from the same origin as the API.
	ArtifactDir string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("roomora-api"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.ArtifactDir != "" {
		r.Static("/artifacts", cfg.ArtifactDir)
	}

	api := r.Group("/api")

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.ProjectHandler != nil {
			protected.POST("/projects", cfg.ProjectHandler.Create)
			protected.GET("/projects", cfg.ProjectHandler.List)
			protected.GET("/projects/:id", cfg.ProjectHandler.Get)
			protected.POST("/projects/:id/intents", cfg.ProjectHandler.Intent)
			protected.DELETE("/projects/:id", cfg.ProjectHandler.Cancel)
			protected.GET("/projects/:id/revisions", cfg.ProjectHandler.Revisions)
		}
	}

	return r
}
