package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusIdle, "idle"},
		{RunStatusRejected, "rejected"},
		{RunStatusNoAttachment, "no_attachment"},
		{RunStatusCommitted, "committed"},
		{RunStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.True(t, tt.status.Valid())
		})
	}
}

func TestRunStatusValid_Unknown(t *testing.T) {
	t.Parallel()
	assert.False(t, RunStatus("crawling").Valid())
	assert.False(t, RunStatus("").Valid())
}

func TestRunDuration(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 4, 7, 0, 0, 0, time.UTC)
	r := Run{StartedAt: start}
	assert.Zero(t, r.Duration())

	r.FinishedAt = start.Add(1500 * time.Millisecond)
	assert.Equal(t, 1500*time.Millisecond, r.Duration())
}
