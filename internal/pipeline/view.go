package pipeline

import (
	"time"

	"github.com/jonathan/lead-tracker/internal/timers"
	"github.com/jonathan/lead-tracker/internal/types"
)

// LeadView is the derived, read-only projection of a lead for the UI.
type LeadView struct {
	Lead            types.Lead              `json:"lead"`
	Stage           types.Stage             `json:"stage"`
	Progress        int                     `json:"progress_percentage"`
	ApplyDeadline   *timers.Countdown       `json:"apply_deadline,omitempty"`
	FollowUp        *timers.Countdown       `json:"follow_up,omitempty"`
	FollowUpOverdue bool                    `json:"follow_up_overdue"`
	LatestInterview *types.InterviewSummary `json:"latest_interview,omitempty"`
}

// Board is the full pipeline as shown in the stage columns.
type Board struct {
	Stages  []types.Stage              `json:"stages"`
	Buckets map[types.Stage][]LeadView `json:"buckets"`
	Counts  map[types.Stage]int        `json:"counts"`
	Total   int                        `json:"total"`
	At      time.Time                  `json:"at"`
}

// NewView derives the view of a lead at now.
func NewView(l types.Lead, now time.Time, w timers.Windows) LeadView {
	v := LeadView{
		Lead:            l,
		Stage:           l.Stage(),
		Progress:        l.Progress(),
		LatestInterview: types.LatestInterview(l.Interviews),
	}
	if c := timers.ApplyDeadline(l, now, w); c.Eligible {
		v.ApplyDeadline = &c
	}
	if c := timers.FollowUp(l, now, w); c.Eligible {
		v.FollowUp = &c
		v.FollowUpOverdue = c.Expired
	}
	return v
}

// NewBoard builds the board from already-filtered leads.
func NewBoard(leads []types.Lead, now time.Time, w timers.Windows) Board {
	b := Board{
		Stages:  types.Stages,
		Buckets: make(map[types.Stage][]LeadView, len(types.Stages)),
		Counts:  make(map[types.Stage]int, len(types.Stages)),
		At:      now,
	}
	for st, ls := range GroupByStage(leads) {
		views := make([]LeadView, 0, len(ls))
		for _, l := range ls {
			views = append(views, NewView(l, now, w))
		}
		b.Buckets[st] = views
		b.Counts[st] = len(views)
		b.Total += len(views)
	}
	return b
}
