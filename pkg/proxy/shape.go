package proxy

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxLoggedBody caps request/response bodies stored in telemetry. The wire
// forward is never truncated.
const maxLoggedBody = 100 * 1024

// truncatedSuffix marks a body that was cut at maxLoggedBody.
const truncatedSuffix = "...[truncated]"

// filteredHeaders are hop-by-hop headers dropped before forwarding.
var filteredHeaders = map[string]struct{}{
	"host":                {},
	"connection":          {},
	"keep-alive":          {},
	"transfer-encoding":   {},
	"te":                  {},
	"trailer":             {},
	"upgrade":             {},
	"content-length":      {},
	"proxy-connection":    {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
}

// filterHeaders copies h, dropping hop-by-hop headers case-insensitively and
// preserving everything else verbatim. Filtering is idempotent.
func filterHeaders(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		if _, drop := filteredHeaders[strings.ToLower(name)]; drop {
			continue
		}
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}

// setAuthHeader installs the provider credential in the header the CLI's
// upstream expects: Authorization bearer tokens for Claude Code and Codex,
// x-goog-api-key for Gemini.
func setAuthHeader(h http.Header, apiKey string, cli CLIType) {
	switch cli {
	case CLIGemini:
		h.Set("x-goog-api-key", apiKey)
	default:
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

// buildUpstreamURL joins the provider base URL (trailing slashes stripped)
// with the request path, which already carries any query string.
func buildUpstreamURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}

// serializeHeaders renders headers as a JSON object with lowercased names
// for telemetry storage. Returns "" when marshalling fails.
func serializeHeaders(h http.Header) string {
	m := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		m[strings.ToLower(name)] = values[len(values)-1]
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// truncateForLog converts a body to a string capped at maxLoggedBody bytes,
// appending a marker when cut.
func truncateForLog(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + truncatedSuffix
	}
	return string(body)
}

// maybeGunzip decompresses body when the response declared gzip encoding.
// The result is used only for logging and usage inspection; the wire bytes
// are forwarded as received. Any decode failure falls back to the original.
func maybeGunzip(body []byte, contentEncoding string) []byte {
	if !strings.Contains(strings.ToLower(contentEncoding), "gzip") {
		return body
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return body
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return body
	}
	return out
}
