// Package proxy implements the request-forwarding core of the CCG gateway.
//
// The proxy receives requests from CLI AI assistants (Claude Code, Codex,
// Gemini), classifies the client from its User-Agent, selects an upstream
// provider, rewrites the request (model mapping, header filtering,
// authentication), and forwards it either buffered or as a live SSE relay.
// Upstream outcomes feed the provider health tracker and the telemetry
// recorder.
//
// # Request Flow
//
//	inbound → classify CLI type → select provider → rewrite → forward → record
//
// Classification, streaming detection, model mapping, authentication, and
// token-usage parsing all branch on the CLI type; the three wire conventions
// are a closed set.
//
// # Forwarding Modes
//
// Buffered requests run under a single total deadline. Streaming requests run
// under a first-byte deadline followed by a per-chunk idle deadline; chunks
// are flushed to the caller as they arrive, never held until EOF.
package proxy
