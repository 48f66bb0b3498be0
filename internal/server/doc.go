// Package server exposes the admin HTTP endpoints: health, stats, version
// and Prometheus metrics.
package server
