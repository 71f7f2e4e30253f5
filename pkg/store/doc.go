// Package store provides the SQLite-backed configuration store for the
// gateway: upstream providers, their model mappings, and the gateway and
// timeout settings singletons.
//
// # Database
//
// The store owns ccg_gateway.db. The schema is declared in code (see
// schema.go) and reconciled against the live database on open via
// internal/sqlitex, so upgrades happen automatically without hand-written
// migration scripts. Default rows for gateway_settings, timeout_settings
// and cli_settings are seeded after a fresh create or a migration.
//
// # Provider selection
//
// SelectProvider implements the routing decision for a request: among the
// providers registered for a CLI type it returns the first one that is
// enabled and not currently blacklisted, ordered by sort_order then id.
// The query reads fresh state on every call; there is no in-memory cache
// to invalidate.
//
// # Health bookkeeping
//
// RecordSuccess and RecordFailure maintain the consecutive-failure counter
// that drives blacklisting. Both run inside immediate transactions so that
// concurrent requests against the same provider cannot lose updates, and
// RecordFailure reports the threshold crossing exactly once so the caller
// can emit a single blacklist event.
package store
