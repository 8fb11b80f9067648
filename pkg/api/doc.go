// Package api provides the HTTP REST API server for the alert dashboard backend.
//
// # Overview
//
// This package assembles the router from the domain handler groups and owns
// the handlers that belong to no single domain: login, logout, the current
// user, and the caller's own API keys.
//
// # Architecture
//
// The API is built on gorilla/mux. Every route passes request id, logging,
// panic recovery, metrics, content type, and body size middleware. Routes
// then split into two groups:
//
//   - Public: POST /login, rate limited per client IP
//   - Authenticated: everything else, behind credential resolution, the API
//     key write scope guard, and per-principal rate limiting
//
// Capability checks are attached per route by the owning package:
//
//   - pkg/override: PATCH /alert/{id}/override, GET /alerts
//   - pkg/roles: GET /users, PATCH /user/{id}/role, GET /audit/roles
//   - pkg/audit: GET /audit, GET /audit/api-keys, GET /audit/export
//   - this package: POST /logout, GET /user/current, /user/api-keys
//
// # Usage
//
//	server := api.NewServer(api.Deps{
//		Store:           st,
//		Audit:           auditLog,
//		Sessions:        sessions,
//		APIKeys:         keys,
//		Resolver:        resolver,
//		SessionStrategy: sessionStrategy,
//		Limiter:         limiter,
//		RateLimits:      middleware.DefaultTierPolicy(),
//		Metrics:         metrics,
//		Logger:          logger,
//	})
//	http.ListenAndServe(":8080", server)
//
// The handler is wrapped with otelhttp, so requests are traced whenever a
// tracer provider is installed.
package api
