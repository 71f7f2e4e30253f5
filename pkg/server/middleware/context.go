package middleware

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// requestIDKey stores the request ID in the request context.
const requestIDKey contextKey = "request_id"

// GetRequestID extracts the request ID from the context. Returns empty
// string if not set.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
