// Package timers derives the per-lead apply-deadline and follow-up countdowns
// and runs the periodic sweeps that act on them.
package timers

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/lead-tracker/internal/types"
)

// Default deadline offsets from a lead's creation time.
const (
	DefaultApplyWindow    = 48 * time.Hour
	DefaultFollowUpWindow = 48 * time.Hour
)

// Windows holds the deadline offsets.
type Windows struct {
	Apply    time.Duration
	FollowUp time.Duration
}

// DefaultWindows returns the standard two-day windows.
func DefaultWindows() Windows {
	return Windows{Apply: DefaultApplyWindow, FollowUp: DefaultFollowUpWindow}
}

func (w Windows) withDefaults() Windows {
	if w.Apply <= 0 {
		w.Apply = DefaultApplyWindow
	}
	if w.FollowUp <= 0 {
		w.FollowUp = DefaultFollowUpWindow
	}
	return w
}

// Countdown is the state of one timer at a given instant.
type Countdown struct {
	Eligible  bool          `json:"eligible"`
	Deadline  time.Time     `json:"deadline"`
	Remaining time.Duration `json:"remaining"`
	Expired   bool          `json:"expired"`
	Label     string        `json:"label"`
}

// ApplyDeadline evaluates the apply-deadline timer. Only active prospects
// are eligible.
func ApplyDeadline(l types.Lead, now time.Time, w Windows) Countdown {
	eligible := !l.IsArchived && l.Stage() == types.StageProspect
	return countdown(eligible, l.CreatedAt.Add(w.withDefaults().Apply), now)
}

// FollowUp evaluates the follow-up timer. Active applied leads without
// interviews whose follow-up is not done are eligible.
func FollowUp(l types.Lead, now time.Time, w Windows) Countdown {
	eligible := !l.IsArchived &&
		l.Applied &&
		l.Stage() == types.StageLead &&
		!l.FollowUpCompleted()
	return countdown(eligible, l.CreatedAt.Add(w.withDefaults().FollowUp), now)
}

func countdown(eligible bool, deadline, now time.Time) Countdown {
	if !eligible {
		return Countdown{}
	}
	remaining := deadline.Sub(now)
	c := Countdown{
		Eligible:  true,
		Deadline:  deadline,
		Remaining: remaining,
		Expired:   remaining <= 0,
	}
	if c.Expired {
		c.Remaining = 0
		c.Label = "expired"
	} else {
		c.Label = FormatRemaining(remaining)
	}
	return c
}

// FormatRemaining renders a duration as days, hours and minutes starting at
// the coarsest non-zero unit, e.g. "1d 4h 12m", "3h 0m", "12m".
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	if d < time.Minute {
		return "<1m"
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}
