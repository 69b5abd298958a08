package logging

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)

	logger.Info("issued credential for %s", "client-1")
	logger.Warn("sweep skipped")
	logger.Error("adapter failure: %v", fmt.Errorf("boom"))

	out := buf.String()
	assert.Contains(t, out, "INFO issued credential for client-1")
	assert.Contains(t, out, "WARN sweep skipped")
	assert.Contains(t, out, "ERROR adapter failure: boom")
}

func TestLoggerDebugSuppressed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)

	logger.Debug("should not appear")
	assert.Empty(t, buf.String())

	debugLogger := NewWithWriter(&buf, true)
	debugLogger.Debug("should appear")
	assert.Contains(t, buf.String(), "DEBUG should appear")
}

func TestSecretIsNeverPrinted(t *testing.T) {
	s := Secret("hunter2")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.NotContains(t, fmt.Sprintf("%s %v %#v", s, s, s), "hunter2")
}

func TestRedact(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		secrets []string
		want    string
	}{
		{
			name:    "single_secret",
			input:   "password=topsecret42 host=db",
			secrets: []string{"topsecret42"},
			want:    "password=[REDACTED] host=db",
		},
		{
			name:    "multiple_occurrences",
			input:   "abc123 then abc123 again",
			secrets: []string{"abc123"},
			want:    "[REDACTED] then [REDACTED] again",
		},
		{
			name:    "trivial_secret_kept",
			input:   "pin=12",
			secrets: []string{"12"},
			want:    "pin=12",
		},
		{
			name:    "empty_secret_list",
			input:   "nothing to do",
			secrets: nil,
			want:    "nothing to do",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Redact(tt.input, tt.secrets)
			assert.Equal(t, tt.want, got)
			for _, s := range tt.secrets {
				if len(s) > 3 {
					assert.False(t, strings.Contains(got, s))
				}
			}
		})
	}
}
