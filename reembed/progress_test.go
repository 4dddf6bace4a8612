package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_ReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 1000, 100)
	tracker.Start(0)

	tracker.Update(50)
	assert.Empty(t, buf.String(), "below the interval nothing is printed")

	tracker.Update(100)
	assert.Contains(t, buf.String(), "100/1000 (10.0%)")

	buf.Reset()
	tracker.Increment(150)
	assert.Contains(t, buf.String(), "250/1000 (25.0%)")
	assert.Contains(t, buf.String(), "chunks/s")
}

func TestProgressTracker_ResumeOffset(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 400, 100)
	tracker.Start(200)

	tracker.Increment(50)
	assert.Empty(t, buf.String(), "interval counts from the resume point")

	tracker.Increment(50)
	assert.Contains(t, buf.String(), "300/400 (75.0%)")
}

func TestProgressTracker_FinishCapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "documents", 100, 10)
	tracker.Start(0)

	tracker.Increment(150)
	tracker.Finish()

	output := buf.String()
	assert.NotContains(t, output, "150/100")
	assert.True(t, strings.HasSuffix(output, "\n"))
	lines := strings.Split(strings.TrimSpace(output), "\r")
	assert.Contains(t, lines[len(lines)-1], "100/100 (100.0%)")
	assert.Contains(t, lines[len(lines)-1], "documents/s")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 0, 10)
	tracker.Start(0)
	tracker.Finish()

	assert.Contains(t, buf.String(), "0/0 (0.0%)")
}

func TestProgressTracker_IgnoredBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, "chunks", 100, 10)

	tracker.Increment(50)
	tracker.Update(60)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_Elapsed(t *testing.T) {
	tracker := NewProgressTracker(&bytes.Buffer{}, "chunks", 10, 1)
	tracker.Start(0)
	time.Sleep(5 * time.Millisecond)

	assert.GreaterOrEqual(t, tracker.Elapsed(), 5*time.Millisecond)
}
