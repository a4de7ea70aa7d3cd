package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimMethod(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		expected string
	}{
		{
			name:     "GET method with path",
			pattern:  "GET /augment",
			expected: "/augment",
		},
		{
			name:     "POST method with path",
			pattern:  "POST /maintenance/sweep",
			expected: "/maintenance/sweep",
		},
		{
			name:     "pattern with wildcards",
			pattern:  "PUT /names/{origin}/{handle}",
			expected: "/names/{origin}/{handle}",
		},
		{
			name:     "path without method",
			pattern:  "/healthcheck",
			expected: "/healthcheck",
		},
		{
			name:     "invalid method prefix left alone",
			pattern:  "INVALID /path",
			expected: "INVALID /path",
		},
		{
			name:     "lowercase method not stripped",
			pattern:  "get /augment",
			expected: "get /augment",
		},
		{
			name:     "empty string",
			pattern:  "",
			expected: "",
		},
		{
			name:     "method without trailing space",
			pattern:  "GET",
			expected: "GET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimMethod(tt.pattern))
		})
	}
}
