package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/documents"
	"medstudy-backend/internal/progress"
	"medstudy-backend/internal/qa"
	"medstudy-backend/internal/shared/config"
	"medstudy-backend/internal/shared/metrics"
	"medstudy-backend/internal/shared/server/middleware"
	"medstudy-backend/internal/shared/server/respond"
	"medstudy-backend/internal/subjects"
	"medstudy-backend/internal/topics"
)

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	DB              *sql.DB
	DocumentHandler *documents.Handler
	TopicHandler    *topics.Handler
	SubjectHandler  *subjects.Handler
	QAHandler       *qa.Handler
	ProgressHandler *progress.Handler
	RateLimiter     *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" || deps.Config.Env == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/health", healthHandler(deps.DB))
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.DB))

	protected := api.Group("")
	protected.Use(
		middleware.Auth(),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    middleware.DefaultRateLimitRules(),
			GroupFor: middleware.RouteGroup,
			Limiter:  deps.RateLimiter,
		}),
	)
	registerMeRoutes(protected)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(protected)
	}
	if deps.TopicHandler != nil {
		deps.TopicHandler.RegisterRoutes(protected)
	}
	if deps.SubjectHandler != nil {
		deps.SubjectHandler.RegisterRoutes(protected)
	}
	if deps.QAHandler != nil {
		deps.QAHandler.RegisterRoutes(protected)
	}
	if deps.ProgressHandler != nil {
		deps.ProgressHandler.RegisterRoutes(protected)
	}

	return r
}

func healthHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := "memory"
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				respond.Error(c, http.StatusServiceUnavailable, "unavailable", "database unreachable", nil)
				return
			}
			store = "postgres"
		}
		respond.OK(c, gin.H{"ok": true, "store": store})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
