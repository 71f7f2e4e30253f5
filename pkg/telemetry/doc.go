// Package telemetry persists the gateway's request history: one row per
// terminated proxy request, system events for lifecycle transitions, and a
// per-day usage rollup keyed by (date, provider, CLI type).
//
// # Database
//
// Telemetry lives in its own database, ccg_logs.db, so bulky request and
// response captures never contend with the configuration store. The schema
// is declared in schema.go and reconciled on open via internal/sqlitex.
//
// # Recorder
//
// The Recorder decouples the request path from disk writes: callers enqueue
// a RequestLog or a SystemEvent onto a bounded channel and a single worker
// goroutine drains it. A full channel drops the record after a timeout
// rather than stalling a proxy request. Close drains outstanding writes.
//
// # Events
//
// System events are emitted on transitions only: a provider crossing its
// failure threshold, the first success after failures, operator actions
// (create, update, delete, reset), selection finding no provider, and
// gateway startup.
package telemetry
