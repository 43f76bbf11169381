// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/lehoangnam/glamping-reconciliation/internal/config"
	"github.com/lehoangnam/glamping-reconciliation/internal/handler"
	"github.com/lehoangnam/glamping-reconciliation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Sepay webhook.  The webhook sits behind the
// Redis token bucket so a misbehaving sender cannot saturate the
// reconciliation path; with no Redis client the limiter is a no-op.
func RegisterRoutes(e *echo.Echo, wh *handler.WebhookHandler, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	e.POST("/v1/webhooks/sepay", wh.Receive, rl)
}

// RegisterAuth registers operator authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me and /v1/auth/logout require a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.POST("/auth/logout", a.Logout)
}

// RegisterAdmin registers the operator reconciliation surface under
// /v1/admin.  Every route requires an ADMIN access token; list and get
// responses are served through the Redis response cache when available.
func RegisterAdmin(e *echo.Echo, at *handler.AdminTransactionHandler, jwtSecret string, rdb *redis.Client) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	g.GET("/transactions", at.List, cache)
	g.GET("/transactions/:id", at.Get, cache)
	g.POST("/transactions/:id/match", at.Match)
}
