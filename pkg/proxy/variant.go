package proxy

import (
	"encoding/json"
	"net/http"
	"strings"
)

// CLIType identifies which CLI assistant produced a request. The set is
// closed: classification, streaming detection, model mapping, authentication,
// and usage parsing all branch on it.
type CLIType int

const (
	// CLIClaudeCode is the default classification.
	CLIClaudeCode CLIType = iota
	// CLICodex covers the Codex CLI and other OpenAI-style clients.
	CLICodex
	// CLIGemini covers the Gemini CLI and other Google-style clients.
	CLIGemini
)

// String returns the tag stored in provider records and telemetry rows.
func (c CLIType) String() string {
	switch c {
	case CLICodex:
		return "codex"
	case CLIGemini:
		return "gemini"
	default:
		return "claude_code"
	}
}

// DetectCLIType classifies the client from its User-Agent header using
// case-insensitive substring search. Codex signatures win over Gemini
// signatures; anything unrecognized is Claude Code.
func DetectCLIType(h http.Header) CLIType {
	ua := strings.ToLower(h.Get("User-Agent"))
	switch {
	case strings.Contains(ua, "codex") || strings.Contains(ua, "openai"):
		return CLICodex
	case strings.Contains(ua, "gemini") || strings.Contains(ua, "google"):
		return CLIGemini
	default:
		return CLIClaudeCode
	}
}

// IsStreaming reports whether the request expects a streamed response.
// Claude Code and Codex signal it with "stream": true in the JSON body;
// Gemini signals it in the URL path. A body that does not parse as JSON
// means non-streaming.
func IsStreaming(body []byte, path string, cli CLIType) bool {
	if cli == CLIGemini {
		return strings.Contains(path, "streamGenerateContent")
	}

	var payload struct {
		Stream bool `json:"stream"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return payload.Stream
}
