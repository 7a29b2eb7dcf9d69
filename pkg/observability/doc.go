// Package observability provides structured logging, Prometheus metrics,
// and health check endpoints for the Meridian backend.
package observability
