// Package admin exposes the operator REST API: provider CRUD and ordering,
// health resets, gateway and timeout settings, request/system log queries,
// and usage statistics. Every mutation that changes operator-visible state
// emits a system event.
//
// The API is JSON in, JSON out; errors are {"error": "..."} with a 4xx/5xx
// status. It is mounted under /api/ next to the proxy's catch-all route.
package admin
