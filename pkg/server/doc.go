// Package server assembles the gateway's HTTP surface: the proxy catch-all,
// the operator API under /api/, the Prometheus endpoint, and the health
// probe, behind a shared middleware chain.
//
// Requests pass through the middleware outermost to innermost:
//  1. Recovery: turns panics into 500 responses
//  2. RequestID: assigns an X-Request-ID for correlation
//  3. Logging: one structured line per request
//  4. CORS: permissive headers for local tooling
//
// The HTTP server deliberately sets no WriteTimeout: streaming responses are
// open-ended, their idle and total timeouts are enforced per-request by the
// proxy package.
package server
