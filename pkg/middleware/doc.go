// Package middleware provides HTTP middleware for authentication, API key
// scope enforcement, and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: credential resolution
//
//	authn := middleware.NewAuthMiddleware(resolver, false)
//	router.Use(authn.Handler)
//	// Resolves session/API key/demo headers, stores the auth.Principal on the context
//
// RequireWriteScope: API keys without the write scope may only issue GET, HEAD and OPTIONS
//
//	router.Use(middleware.RequireWriteScope)
//
// RateLimitMiddleware: per-tier rate limiting over any Limiter
//
//	limiter, _ := middleware.NewRateLimiter(middleware.DefaultMaxBuckets)
//	// or middleware.NewDistributedRateLimiter(redisClient, "ratelimit")
//	router.Use(middleware.NewRateLimitMiddleware(limiter, policy, metrics).Handler)
//
// # Rate Limiting
//
// API keys are limited by their rate_limit_tier (standard, elevated; unlimited
// is never limited), sessions share a per-user budget, and anonymous requests
// are limited per client IP. Rejected requests get 429 with Retry-After and
// X-RateLimit-* headers. If the limiter backend fails, requests are allowed.
//
// # Related Packages
//
//   - pkg/auth: credential strategies and the Principal type
//   - pkg/rbac: capability checks on individual routes
package middleware
