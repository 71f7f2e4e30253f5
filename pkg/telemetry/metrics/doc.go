// Package metrics exposes the gateway's Prometheus collectors.
//
// All metrics live under the ccg_gateway namespace and are labeled by CLI
// type and provider name, mirroring the dimensions of the usage_daily
// telemetry rollup. The registry is private to the Metrics value; tests can
// create as many instances as they need without collisions.
package metrics
