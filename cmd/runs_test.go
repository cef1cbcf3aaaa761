package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/villageroaster/bakeboard/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 6, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			StartedAt:  now,
			FinishedAt: now.Add(4200 * time.Millisecond),
			Status:     model.RunStatusCommitted,
			Subject:    "Bake list",
			Plan:       []string{"Croissant", "Scone", "Baguette"},
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			StartedAt:  now.Add(-time.Minute),
			FinishedAt: now.Add(-time.Minute + 200*time.Millisecond),
			Status:     model.RunStatusIdle,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "committed")
	assert.Contains(t, output, "idle")
	assert.Contains(t, output, "Bake list")
	assert.Contains(t, output, "2025-06-15 06:30")
	assert.Contains(t, output, "4.2s")
}

func TestFormatRunsList_FailedRun(t *testing.T) {
	now := time.Date(2025, 6, 15, 6, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:         "fail1234",
			StartedAt:  now,
			FinishedAt: now.Add(time.Second),
			Status:     model.RunStatusFailed,
			Subject:    strings.Repeat("very long subject ", 5),
			Error:      "ocr: status 503",
			ErrorClass: "transient",
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "[transient] ocr: status 503")
	assert.Contains(t, output, "...")
}

func TestFormatRunsList_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "", truncateID(""))
}

func TestFormatOCRResult(t *testing.T) {
	var buf bytes.Buffer
	formatOCRResult(&buf, "jpeg 1200x900", "# Today\n- Croissant", []string{"Croissant"}, []string{"Butter Croissant"}, true)

	output := buf.String()
	assert.Contains(t, output, "== Image ==\njpeg 1200x900\n")
	assert.Contains(t, output, "== OCR text ==")
	assert.Contains(t, output, "- Croissant")
	assert.Contains(t, output, "== Candidates (1) ==")
	assert.Contains(t, output, "== Plan (1) ==")
	assert.Contains(t, output, " 1. Butter Croissant")
}

func TestFormatOCRResult_NoMatch(t *testing.T) {
	var buf bytes.Buffer
	formatOCRResult(&buf, "png 10x10", "Scone", []string{"Scone"}, nil, false)

	assert.NotContains(t, buf.String(), "== Plan")
}

func TestFormatMenu(t *testing.T) {
	var buf bytes.Buffer
	formatMenu(&buf, []string{"Croissant", "Scone"})

	assert.Equal(t, "Croissant\nScone\n\n2 items\n", buf.String())
}
