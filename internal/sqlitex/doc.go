// Package sqlitex holds the SQLite plumbing shared by the configuration and
// telemetry stores: opening with the standard pragma and pool regime, the
// declarative schema model, and version-driven migration with table rebuild
// by copy-through-rename.
package sqlitex
