// Package config loads the gateway's process configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables (GATEWAY_HOST, GATEWAY_PORT, CCG_DATA_DIR,
// CCG_LOG_LEVEL), then command-line flags applied by the caller. The two
// SQLite databases live under the data directory, which defaults to
// $HOME/.ccg-gateway.
//
// Operator-tunable runtime settings (providers, model maps, timeouts) are
// not part of this package; they live in the configuration store and are
// read per request.
package config
