package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name      string
		persisted int
		failed    int
		want      int
	}{
		{"all good", 10, 0, 0},
		{"partial failure", 5, 5, 0},
		{"total failure", 0, 3, 1},
		{"nothing to do", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := &Stats{Persisted: tt.persisted, Failed: tt.failed}
			assert.Equal(t, tt.want, stats.ExitCode())
		})
	}
}

func TestRecordErrorClipsLongMessages(t *testing.T) {
	stats := &Stats{}
	stats.RecordError("fetch", "acme/tools:skills/pdf",
		errors.New(strings.Repeat("x", 500)))

	samples := stats.Errors()
	assert.Len(t, samples, 1)
	assert.LessOrEqual(t, len(samples[0]), 160)
	assert.True(t, strings.HasPrefix(samples[0], "fetch acme/tools:skills/pdf:"))
}
