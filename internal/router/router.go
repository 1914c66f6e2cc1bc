package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/aether/internal/middleware" // session auth, accounts, rate limit and cache
)

// Deps bundles what the route groups need.  Everything except DB and the
// handlers may be zero: a nil Redis client turns the limiter and cache into
// pass-through middleware.
type Deps struct {
	DB            *sql.DB
	SessionSecret string
	Accounts      middleware.AccountEnsurer
	Limiter       echo.MiddlewareFunc
	Cache         *middleware.SiteCache
	Projects      *handler.ProjectHandler
	Credits       *handler.CreditHandler
	Published     *handler.PublishedHandler
	Log           zerolog.Logger
}

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterUser registers the signed-in user's project and credit routes
// under /api/user and the project mutation routes under /api/project.
func RegisterUser(e *echo.Echo, d Deps) {
	auth := []echo.MiddlewareFunc{
		middleware.SessionAuth(d.SessionSecret),
		middleware.EnsureAccount(d.Accounts, d.Log),
	}
	limit := d.Limiter
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	u := e.Group("/api/user", auth...)
	u.POST("/project", d.Projects.Create, limit)
	u.GET("/projects", d.Projects.List)
	u.GET("/project/:id", d.Projects.Get)
	u.GET("/publish-toggle/:id", d.Projects.TogglePublish)
	u.GET("/credits", d.Credits.Get)

	p := e.Group("/api/project", auth...)
	p.POST("/revision/:id", d.Projects.Revision, limit)
	p.POST("/rollback/:id/:versionId", d.Projects.Rollback)
	p.GET("/rollback/:id/:versionId", d.Projects.Rollback) // older clients roll back with GET
	p.PUT("/save/:id", d.Projects.Save)
	p.DELETE("/:id", d.Projects.Delete)
	p.GET("/preview/:id", d.Projects.Preview)
}

// RegisterPublished registers the unauthenticated published-site routes.
// The site itself is served through the Redis cache.
func RegisterPublished(e *echo.Echo, d Deps) {
	g := e.Group("/api/published")
	g.GET("", d.Published.List)
	g.GET("/:id", d.Published.Site, d.Cache.Middleware())
}
