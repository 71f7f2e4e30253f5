// Package middleware provides the HTTP middleware chain for the gateway:
// panic recovery, request ID propagation, structured access logging, and
// permissive CORS for the operator UI.
//
// The logging wrapper preserves http.Flusher so streaming responses keep
// their chunk-granularity flushes through the chain.
package middleware
