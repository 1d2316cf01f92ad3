package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short", "gold", 10, "gold"},
		{"exact", "gold", 4, "gold"},
		{"cut", `{"old": 100, "new": 125}`, 12, `{"old": 1...`},
		{"multi-line", "{\n  \"slot\": \"head\"\n}", 40, `{ "slot": "head" }`},
		{"unicode", "✓ Bandit Toll ✓", 6, "✓ B..."},
		{"clamped", "abcdef", 1, "a..."},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.input, tt.maxLen))
		})
	}
}
