package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePastedCode(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCode  string
		wantState string
	}{
		{"bare code", "abc123", "abc123", ""},
		{"bare code with whitespace", "  abc123\n", "abc123", ""},
		{"full redirect url", "http://localhost:8000/callback?code=abc123&state=xyz", "abc123", "xyz"},
		{"redirect url without state", "http://localhost:8000/callback?code=abc123", "abc123", ""},
		{"empty", "", "", ""},
		{"url without code", "http://localhost:8000/callback?error=access_denied", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, state := parsePastedCode(tt.input)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantState, state)
		})
	}
}
