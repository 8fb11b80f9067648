// Package config provides application configuration management.
//
// # Overview
//
// Configuration starts from defaults, is overlaid by an optional YAML file
// (ALERTDESK_CONFIG_FILE), and finally by environment variables. A .env file
// in the working directory is loaded first; it never overrides variables that
// are already set.
//
// # Configuration Structure
//
// Server settings:
//
//	ALERTDESK_ENV="prod"  # dev, test, staging, prod
//	ALERTDESK_HOST="0.0.0.0"
//	ALERTDESK_PORT="8080"
//	ALERTDESK_HEALTH_PORT="9090"
//	ALERTDESK_READ_TIMEOUT="15s"
//
// Database and Redis:
//
//	ALERTDESK_DB_DRIVER="postgres"  # postgres, sqlite
//	ALERTDESK_DB_DSN="postgres://alertdesk@localhost/alertdesk?sslmode=disable"
//	ALERTDESK_REDIS_URL="redis://localhost:6379/0"
//
// Credentials and rate limiting:
//
//	ALERTDESK_TEST_MODE="false"  # enables the X-User-Id demo header; rejected in prod
//	ALERTDESK_RATE_LIMIT_BACKEND="redis"  # memory, redis
//	ALERTDESK_RATE_LIMIT_STANDARD="100"
//
// Observability and archive:
//
//	ALERTDESK_LOG_LEVEL="info"  # debug, info, warn, error
//	ALERTDESK_LOG_FORMAT="json"  # json, text (text is the dev default)
//	ALERTDESK_OTEL_ENABLED="true"
//	ALERTDESK_ARCHIVE_BUCKET="alertdesk-audit"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/store: database and Redis settings
//   - pkg/middleware: rate limit tiers
//   - pkg/observability: logging and tracing settings
package config
