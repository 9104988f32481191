package observability

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/lead-tracker/internal/pipeline"
	"github.com/jonathan/lead-tracker/internal/timers"
	"github.com/jonathan/lead-tracker/internal/types"
)

func TestPrintBoard(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	leads := []types.Lead{
		{ID: "click-1", Title: "Engineer", Company: "Acme", CreatedAt: now.Add(-47 * time.Hour)},
		{ID: "app-1", Title: "SRE", Company: "Initech", Applied: true, IsMaterialized: true, CreatedAt: now.Add(-72 * time.Hour)},
	}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintBoard(pipeline.NewBoard(leads, now, timers.DefaultWindows()))
	out := buf.String()

	assert.Contains(t, out, "PROSPECTS (1)")
	assert.Contains(t, out, "Engineer @ Acme")
	assert.Contains(t, out, "apply: 1h 0m")
	assert.Contains(t, out, "LEAD (1)")
	assert.Contains(t, out, "follow-up overdue")
	assert.Contains(t, out, "(empty)")
}

func TestPrintBoard_TruncatesLongStages(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var leads []types.Lead
	for range maxItemsToShow + 3 {
		leads = append(leads, types.Lead{ID: types.NewClickID(), Title: "Role", Company: "Co", CreatedAt: now})
	}

	var buf bytes.Buffer
	NewPrinter(&buf).PrintBoard(pipeline.NewBoard(leads, now, timers.DefaultWindows()))
	assert.Contains(t, buf.String(), "... and 3 more")
}

func TestPrintBox_TruncatesLongLines(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("T", strings.Repeat("x", 200))
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.LessOrEqual(t, len([]rune(line)), boxWidth)
	}
	assert.Contains(t, buf.String(), "...")
}

func TestPrintSweep(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintSweep(timers.SweepResult{Archived: 2, Dropped: 1, Failed: 1}, timers.SweepResult{Overdue: 4})
	out := buf.String()
	assert.Contains(t, out, "TIMER SWEEP")
	assert.Contains(t, out, "Auto-archived:     2")
	assert.Contains(t, out, "Follow-ups due:    4")
	assert.Contains(t, out, "Failed:            1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown", slog.String("lead", "app-1"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "lead=app-1")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
