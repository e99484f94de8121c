// Package observability provides structured logging, Prometheus metrics,
// health checks, and OpenTelemetry tracing for the CampusGate portal.
//
// The Logger wraps log/slog with a JSON handler and a WithField/WithError
// chaining API. Metrics covers the HTTP surface plus authentication-specific
// counters (login attempts, token validations, access denials). The
// HealthChecker exposes liveness and readiness probes backed by the
// PostgreSQL and Redis dependencies.
package observability
