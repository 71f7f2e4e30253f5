package proxy

import "testing"

func TestWildcardMatch(t *testing.T) {
	tests := []struct {
		pattern string
		value   string
		want    bool
	}{
		{"claude-3-5-sonnet", "claude-3-5-sonnet", true},
		{"claude-3-5-sonnet", "claude-3-5-haiku", false},
		{"", "", true},
		{"", "x", false},
		{"*", "", true},
		{"*", "anything", true},
		{"claude-*", "claude-3-5-sonnet-20241022", true},
		{"claude-*", "gpt-4o", false},
		{"*-sonnet", "claude-3-5-sonnet", true},
		{"*sonnet*", "claude-sonnet-4", true},
		{"gpt-?", "gpt-4", true},
		{"gpt-?", "gpt-4o", false},
		{"?", "", false},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "axxbyy", false},
		// Backtracking: the first 'b' the star reaches is not the right one.
		{"a*bc", "abxbc", true},
		{"**", "x", true},
		{"a**", "a", true},
	}
	for _, tt := range tests {
		if got := wildcardMatch(tt.pattern, tt.value); got != tt.want {
			t.Errorf("wildcardMatch(%q, %q) = %v, want %v", tt.pattern, tt.value, got, tt.want)
		}
	}
}
