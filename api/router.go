package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankscope/api/handler"
	"github.com/use-agent/rankscope/api/middleware"
	"github.com/use-agent/rankscope/config"
	"github.com/use-agent/rankscope/eventlog"
)

// Pipeline is the title pipeline as seen by the API.
type Pipeline interface {
	handler.TitleRunner
	handler.HTMLFetcher
}

// Deps are the collaborators served by the router.
type Deps struct {
	Pipeline Pipeline
	Fetcher  handler.ProxyFetcher

	// Renderer backs /render-title. Leave it nil when rendering is
	// disabled; the endpoint then answers 501.
	Renderer handler.TitleRenderer

	// Stats reports render pool usage for /health. May be nil.
	Stats handler.StatsProvider

	Events  *eventlog.Ring
	Limiter *middleware.Limiter
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Relay:   RateLimit
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always
// work. The relay endpoints stay outside auth because the pipeline itself
// calls /proxy-fetch and /render-title when configured with a same-origin
// base.
func NewRouter(cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	limiter := deps.Limiter
	if limiter == nil {
		limiter = middleware.NewLimiter(cfg.RateLimit)
	}
	events := deps.Events
	if events == nil {
		events = eventlog.NewRing(cfg.Pipeline.EventLogCapacity)
	}

	// Relay endpoints.
	relay := r.Group("", limiter.Handler())
	relay.GET("/proxy-fetch", handler.ProxyFetch(deps.Fetcher))
	relay.GET("/render-title", handler.RenderTitle(deps.Renderer))

	v1 := r.Group("/api/v1")

	// Health needs no auth.
	v1.GET("/health", handler.Health(deps.Stats, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(limiter.Handler())

	protected.POST("/title", handler.Title(deps.Pipeline))
	protected.POST("/ranking", handler.Ranking(deps.Pipeline))
	protected.POST("/content", handler.Content(deps.Pipeline))

	// Observability log.
	protected.GET("/logs", handler.GetLogs(events))
	protected.DELETE("/logs", handler.ClearLogs(events))

	return r
}
