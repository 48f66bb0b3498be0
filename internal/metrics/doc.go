// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - IRC session state, session failures and nickname collisions
//   - Inbound event rates by kind
//   - Routed, dropped and ignored events per destination
//   - Destination queue depth
//   - Writer throughput and flush errors
package metrics
