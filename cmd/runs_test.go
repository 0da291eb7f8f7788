package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/cepsync/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.RunSummary{
		{
			RunID:      "abc12345-6789-0000-0000-000000000000",
			Mode:       model.ModeRange,
			Status:     model.RunStatusComplete,
			Processed:  120,
			Found:      37,
			Added:      30,
			Duplicates: 7,
			StartedAt:  now,
			Elapsed:    4*time.Minute + 10*time.Second,
		},
		{
			RunID:     "def12345-6789-0000-0000-000000000000",
			Mode:      model.ModeLocality,
			Status:    model.RunStatusFailed,
			StartedAt: now.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "MODE")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "range")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "120")
	assert.Contains(t, output, "4m10s")
	assert.Contains(t, output, "locality")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "2025-06-15 10:30")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}
