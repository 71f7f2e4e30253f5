// ccg is a local HTTP gateway that multiplexes CLI AI assistants across
// configurable upstream providers.
//
// It classifies each request by User-Agent (claude_code, codex, gemini),
// picks the first healthy provider configured for that CLI type, rewrites
// the model and auth headers, and forwards the request, streaming or
// buffered. Failures blacklist providers temporarily; every request is
// logged to a local SQLite database.
//
// Usage:
//
//	# Start the gateway with default configuration
//	ccg run
//
//	# Start with a custom configuration file
//	ccg run --config /path/to/config.yaml
//
//	# Show version information
//	ccg version
package main

func main() {
	Execute()
}
