package timers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/lead-tracker/internal/types"
)

// Default sweep intervals.
const (
	DefaultApplyTick    = 30 * time.Second
	DefaultFollowUpTick = 60 * time.Second
)

// Leads supplies the current lead snapshots.
type Leads interface {
	Snapshot() []types.Lead
}

// Actions are the side effects a sweep can fire.
type Actions interface {
	// AutoArchive archives an expired, materialized prospect in the store.
	AutoArchive(ctx context.Context, leadID string) error
	// DropExpired removes an expired, unmaterialized prospect from view.
	DropExpired(ctx context.Context, leadID string)
	// FollowUpOverdue reports that a lead's follow-up is past due.
	FollowUpOverdue(ctx context.Context, lead types.Lead)
}

// Config configures a Scheduler.
type Config struct {
	ApplyTick    time.Duration
	FollowUpTick time.Duration
	Windows      Windows
	Clock        clockwork.Clock
	Logger       *slog.Logger
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Archived int
	Dropped  int
	Overdue  int
	Failed   int
}

// Scheduler re-evaluates every lead's timers on a fixed tick. Nothing is
// scheduled per lead; eligibility is checked on every tick.
type Scheduler struct {
	leads   Leads
	actions Actions
	cfg     Config

	mu       sync.Mutex
	fired    map[string]struct{} // apply-deadline effects already fired, by lead key
	notified map[string]struct{} // follow-up notifications already sent, by lead key
}

// NewScheduler creates a Scheduler.
func NewScheduler(leads Leads, actions Actions, cfg Config) *Scheduler {
	if cfg.ApplyTick <= 0 {
		cfg.ApplyTick = DefaultApplyTick
	}
	if cfg.FollowUpTick <= 0 {
		cfg.FollowUpTick = DefaultFollowUpTick
	}
	cfg.Windows = cfg.Windows.withDefaults()
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		leads:    leads,
		actions:  actions,
		cfg:      cfg,
		fired:    make(map[string]struct{}),
		notified: make(map[string]struct{}),
	}
}

// Start runs both sweeps until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cfg.Logger.Info("timer scheduler started",
		"apply_tick", s.cfg.ApplyTick, "follow_up_tick", s.cfg.FollowUpTick)

	applyTicker := s.cfg.Clock.NewTicker(s.cfg.ApplyTick)
	defer applyTicker.Stop()
	followTicker := s.cfg.Clock.NewTicker(s.cfg.FollowUpTick)
	defer followTicker.Stop()

	s.SweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.cfg.Logger.Info("timer scheduler stopped")
			return
		case <-applyTicker.Chan():
			s.SweepApplyDeadlines(ctx)
		case <-followTicker.Chan():
			s.SweepFollowUps(ctx)
		}
	}
}

// SweepOnce evaluates both timer classes once.
func (s *Scheduler) SweepOnce(ctx context.Context) SweepResult {
	r := s.SweepApplyDeadlines(ctx)
	f := s.SweepFollowUps(ctx)
	r.Overdue = f.Overdue
	return r
}

// SweepApplyDeadlines fires the expiry effect for every prospect whose apply
// deadline has passed. Each lead fires at most once.
func (s *Scheduler) SweepApplyDeadlines(ctx context.Context) SweepResult {
	now := s.cfg.Clock.Now()
	var res SweepResult
	seen := make(map[string]struct{})

	for _, l := range s.leads.Snapshot() {
		key := l.Key()
		seen[key] = struct{}{}
		c := ApplyDeadline(l, now, s.cfg.Windows)
		if !c.Eligible || !c.Expired {
			continue
		}
		if !s.markOnce(s.fired, key) {
			continue
		}

		if !l.IsMaterialized {
			s.actions.DropExpired(ctx, l.ID)
			res.Dropped++
			s.cfg.Logger.Info("expired click dropped", "lead", l.ID)
			continue
		}
		if err := s.actions.AutoArchive(ctx, l.ID); err != nil {
			res.Failed++
			s.cfg.Logger.Error("auto-archive failed", "lead", l.ID, "error", err)
			continue
		}
		res.Archived++
		s.cfg.Logger.Info("lead auto-archived", "lead", l.ID,
			"overdue", now.Sub(c.Deadline).Round(time.Minute))
	}

	s.prune(s.fired, seen)
	return res
}

// SweepFollowUps reports each lead whose follow-up became overdue. No state
// changes; completing the follow-up stays a user action.
func (s *Scheduler) SweepFollowUps(ctx context.Context) SweepResult {
	now := s.cfg.Clock.Now()
	var res SweepResult
	seen := make(map[string]struct{})

	for _, l := range s.leads.Snapshot() {
		c := FollowUp(l, now, s.cfg.Windows)
		if !c.Eligible || !c.Expired {
			continue
		}
		key := l.Key()
		seen[key] = struct{}{}
		if !s.markOnce(s.notified, key) {
			continue
		}
		s.actions.FollowUpOverdue(ctx, l)
		res.Overdue++
	}

	s.prune(s.notified, seen)
	return res
}

func (s *Scheduler) markOnce(set map[string]struct{}, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := set[key]; ok {
		return false
	}
	set[key] = struct{}{}
	return true
}

// prune forgets leads that are no longer eligible so the sets stay bounded.
func (s *Scheduler) prune(set map[string]struct{}, keep map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range set {
		if _, ok := keep[k]; !ok {
			delete(set, k)
		}
	}
}
