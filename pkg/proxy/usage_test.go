package proxy

import "testing"

func TestParseTokenUsage_ClaudeCode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIn  int64
		wantOut int64
	}{
		{"message envelope", `{"type":"message_start","message":{"usage":{"input_tokens":25,"output_tokens":1}}}`, 25, 1},
		{"root usage", `{"usage":{"input_tokens":7,"output_tokens":13}}`, 7, 13},
		{"no usage", `{"content":[{"type":"text"}]}`, 0, 0},
		{"invalid json", `garbage`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var usage TokenUsage
			parseTokenUsage([]byte(tt.body), CLIClaudeCode, &usage)
			if usage.InputTokens != tt.wantIn || usage.OutputTokens != tt.wantOut {
				t.Errorf("usage = %+v, want %d/%d", usage, tt.wantIn, tt.wantOut)
			}
		})
	}
}

func TestParseTokenUsage_Codex(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIn  int64
		wantOut int64
	}{
		{"response envelope", `{"type":"response.completed","response":{"usage":{"input_tokens":11,"output_tokens":5}}}`, 11, 5},
		{"root chat completions shape", `{"usage":{"prompt_tokens":9,"completion_tokens":4}}`, 9, 4},
		{"root responses shape", `{"usage":{"input_tokens":3,"output_tokens":2}}`, 3, 2},
		// An empty response envelope means "no usage yet", not "look at root".
		{"envelope without usage suppresses root", `{"response":{},"usage":{"prompt_tokens":99}}`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var usage TokenUsage
			parseTokenUsage([]byte(tt.body), CLICodex, &usage)
			if usage.InputTokens != tt.wantIn || usage.OutputTokens != tt.wantOut {
				t.Errorf("usage = %+v, want %d/%d", usage, tt.wantIn, tt.wantOut)
			}
		})
	}
}

func TestParseTokenUsage_Gemini(t *testing.T) {
	var usage TokenUsage
	parseTokenUsage([]byte(`{"usageMetadata":{"promptTokenCount":8,"candidatesTokenCount":20,"thoughtsTokenCount":12}}`), CLIGemini, &usage)
	if usage.InputTokens != 8 {
		t.Errorf("input = %d, want 8", usage.InputTokens)
	}
	if usage.OutputTokens != 32 {
		t.Errorf("output = %d, want candidates+thoughts = 32", usage.OutputTokens)
	}

	usage = TokenUsage{}
	parseTokenUsage([]byte(`{"usageMetadata":{"promptTokenCount":8,"candidatesTokenCount":20}}`), CLIGemini, &usage)
	if usage.OutputTokens != 20 {
		t.Errorf("output without thoughts = %d, want 20", usage.OutputTokens)
	}
}

func TestParseStreamingTokenUsage(t *testing.T) {
	var usage TokenUsage
	lines := []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"usage":{"input_tokens":4,"output_tokens":0}}}`,
		``,
		`data: {"type":"content_block_delta"}`,
		`data: {"usage":{"input_tokens":4,"output_tokens":18}}`,
		`data: [DONE]`,
	}
	for _, line := range lines {
		parseStreamingTokenUsage(line, CLIClaudeCode, &usage)
	}
	if usage.InputTokens != 4 || usage.OutputTokens != 18 {
		t.Errorf("usage = %+v, want last-wins 4/18", usage)
	}

	// "data:" without a space is still a data line.
	usage = TokenUsage{}
	parseStreamingTokenUsage(`data:{"usage":{"input_tokens":1,"output_tokens":2}}`, CLIClaudeCode, &usage)
	if usage.InputTokens != 1 || usage.OutputTokens != 2 {
		t.Errorf("no-space data line not parsed: %+v", usage)
	}

	// Non-data lines are ignored.
	usage = TokenUsage{}
	parseStreamingTokenUsage(`{"usage":{"input_tokens":1}}`, CLIClaudeCode, &usage)
	if usage.InputTokens != 0 {
		t.Error("bare JSON line should be ignored in stream mode")
	}
}

func TestScanSSELines_CrossChunkBoundary(t *testing.T) {
	var usage TokenUsage
	// The usage frame is split across two chunks mid-line.
	buf := scanSSELines([]byte("data: {\"usage\":{\"input_to"), CLIClaudeCode, &usage)
	if usage.InputTokens != 0 {
		t.Error("partial line must not be parsed")
	}
	buf = append(buf, []byte("kens\":6,\"output_tokens\":9}}\n")...)
	buf = scanSSELines(buf, CLIClaudeCode, &usage)
	if usage.InputTokens != 6 || usage.OutputTokens != 9 {
		t.Errorf("usage = %+v, want 6/9", usage)
	}
	if len(buf) != 0 {
		t.Errorf("remainder = %q, want empty", buf)
	}
}
