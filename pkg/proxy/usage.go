package proxy

import (
	"encoding/json"
	"strings"
)

// TokenUsage accumulates the input/output token counts observed in upstream
// responses. For streams the last observed value wins, since providers
// re-emit cumulative usage in their final frames.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// parseTokenUsage updates usage from a JSON response body. Each CLI type
// carries usage in its own shape:
//
//   - Claude Code: message.usage, else root usage (input_tokens/output_tokens)
//   - Codex: response.usage, else root usage (prompt_tokens/input_tokens and
//     completion_tokens/output_tokens)
//   - Gemini: usageMetadata.promptTokenCount; output is candidatesTokenCount
//     plus thoughtsTokenCount
//
// Bodies that do not parse, or carry no usage keys, leave usage untouched.
func parseTokenUsage(data []byte, cli CLIType, usage *TokenUsage) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	switch cli {
	case CLIClaudeCode:
		if msg, ok := payload["message"].(map[string]any); ok {
			if u, ok := msg["usage"].(map[string]any); ok {
				readTokens(u, usage, "input_tokens", "output_tokens")
				return
			}
		}
		if u, ok := payload["usage"].(map[string]any); ok {
			readTokens(u, usage, "input_tokens", "output_tokens")
		}

	case CLICodex:
		// A "response" envelope suppresses the root fallback even when it
		// carries no usage object.
		if respVal, exists := payload["response"]; exists {
			if resp, ok := respVal.(map[string]any); ok {
				if u, ok := resp["usage"].(map[string]any); ok {
					readTokens(u, usage, "input_tokens", "output_tokens")
				}
			}
			return
		}
		if u, ok := payload["usage"].(map[string]any); ok {
			if in, ok := intField(u, "prompt_tokens", "input_tokens"); ok {
				usage.InputTokens = in
			}
			if out, ok := intField(u, "completion_tokens", "output_tokens"); ok {
				usage.OutputTokens = out
			}
		}

	case CLIGemini:
		meta, ok := payload["usageMetadata"].(map[string]any)
		if !ok {
			return
		}
		if in, ok := intField(meta, "promptTokenCount"); ok {
			usage.InputTokens = in
		}
		candidates, _ := intField(meta, "candidatesTokenCount")
		thoughts, _ := intField(meta, "thoughtsTokenCount")
		usage.OutputTokens = candidates + thoughts
	}
}

// parseStreamingTokenUsage inspects one SSE line. Only "data:" lines are
// considered; the [DONE] sentinel is ignored.
func parseStreamingTokenUsage(line string, cli CLIType, usage *TokenUsage) {
	var data string
	switch {
	case strings.HasPrefix(line, "data: "):
		data = line[len("data: "):]
	case strings.HasPrefix(line, "data:"):
		data = line[len("data:"):]
	default:
		return
	}

	if strings.TrimSpace(data) == "[DONE]" {
		return
	}
	parseTokenUsage([]byte(data), cli, usage)
}

// readTokens copies the named counters out of a usage object when present.
func readTokens(u map[string]any, usage *TokenUsage, inKey, outKey string) {
	if in, ok := intField(u, inKey); ok {
		usage.InputTokens = in
	}
	if out, ok := intField(u, outKey); ok {
		usage.OutputTokens = out
	}
}

// intField returns the first of the named keys holding a JSON number.
func intField(m map[string]any, keys ...string) (int64, bool) {
	for _, k := range keys {
		if f, ok := m[k].(float64); ok {
			return int64(f), true
		}
	}
	return 0, false
}
