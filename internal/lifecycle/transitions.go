package lifecycle

import (
	"context"
	"fmt"

	"github.com/jonathan/lead-tracker/internal/events"
	"github.com/jonathan/lead-tracker/internal/fieldsync"
	"github.com/jonathan/lead-tracker/internal/metrics"
	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/timers"
	"github.com/jonathan/lead-tracker/internal/types"
)

// move is the effect of dragging a lead to another stage.
type move struct {
	mutate func(*types.Lead)
	fields store.Fields
}

// planMove decides how a lead gets from its current stage to target. Only
// moves that can be expressed by changing the stage-deciding fields are
// allowed; the rest are conflicts.
func planMove(l types.Lead, target types.Stage) (move, error) {
	from := l.Stage()
	conflict := func(reason string) error {
		return &types.TransitionConflict{LeadID: l.ID, From: from, To: target, Reason: reason}
	}

	switch {
	case target == types.StageDeal:
		return move{}, conflict("use got-the-job to close a deal")

	case from == types.StageLead && target == types.StageProspect:
		return move{
			mutate: func(l *types.Lead) {
				l.Applied = false
				l.SentCV = false
				l.SentPortfolio = false
				l.SentCoverLetter = false
			},
			fields: store.Fields{
				store.ColApplied:         false,
				store.ColSentCV:          false,
				store.ColSentPortfolio:   false,
				store.ColSentCoverLetter: false,
			},
		}, nil

	case from == types.StageDeal:
		if types.DeriveStage(l.Applied, nil, len(l.Interviews) > 0) != target {
			if target == types.StageOpportunity {
				return move{}, conflict("lead has no interviews")
			}
			return move{}, conflict("lead has interviews")
		}
		return move{
			mutate: func(l *types.Lead) { l.GotTheJob = nil },
			fields: store.Fields{store.ColGotTheJob: nil},
		}, nil

	case target == types.StageOpportunity:
		return move{}, conflict("add an interview to move a lead to opportunity")

	default:
		return move{}, conflict("interviews must be removed first")
	}
}

// MoveStage moves a lead to target by changing the fields its stage is
// derived from. The move is shown immediately and reverted if the store
// rejects it.
func (s *Service) MoveStage(ctx context.Context, id string, target types.Stage) (types.Lead, error) {
	const action = "move"
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}
	if target.Index() < 0 {
		return lead, fmt.Errorf("%w: unknown stage %q", types.ErrInvalidInput, target)
	}
	from := lead.Stage()
	if from == target {
		return lead, nil
	}
	if from == types.StageProspect && target == types.StageLead {
		return s.SetApplied(ctx, id, types.Artifacts{})
	}

	m, err := planMove(lead, target)
	if err != nil {
		return lead, s.failed(ctx, action, lead, err)
	}

	updated, err := s.leads.Optimistic(ctx, lead.Key(),
		func(l *types.Lead) error {
			m.mutate(l)
			return nil
		},
		func(ctx context.Context, l types.Lead) error {
			_, err := s.ensureAndUpdate(ctx, l, m.fields)
			return err
		},
	)
	if err != nil {
		return updated, s.failed(ctx, action, lead, err)
	}
	s.log.Info("lead moved", "lead", updated.ID, "from", from, "to", updated.Stage())
	s.succeeded(ctx, action, updated)
	return updated, nil
}

// SaveField applies an inline edit locally and schedules it to be saved once
// the field has been quiet for the configured period. Save failures are
// logged, never returned; the local value stays as typed.
func (s *Service) SaveField(_ context.Context, id string, field types.Field, value any) (types.Lead, error) {
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}
	if _, err := fieldsync.ExternalName(field); err != nil {
		return lead, err
	}
	nv, err := types.NormalizeFieldValue(field, value)
	if err != nil {
		return lead, err
	}

	// The syncer learns the edit first so a concurrent refresh keeps it.
	if err := s.syncerFor(lead.Key()).Save(field, nv); err != nil {
		return lead, err
	}
	_, after, err := s.leads.Update(lead.Key(), func(l *types.Lead) error {
		return types.ApplyField(l, field, nv)
	})
	if err != nil {
		return lead, err
	}
	return after, nil
}

// unavailablePatcher is used for field sync when no store is configured.
type unavailablePatcher struct{}

func (unavailablePatcher) UpdateApplication(context.Context, string, store.Fields) error {
	return store.ErrUnavailable
}

func (s *Service) syncerFor(key string) *fieldsync.Syncer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.syncers[key]; ok {
		return fs
	}
	var patcher fieldsync.Patcher = unavailablePatcher{}
	if s.store != nil {
		patcher = s.store
	}
	fs := fieldsync.New(key, s.mat, patcher, fieldsync.Config{
		Quiet:  s.cfg.Quiet,
		Clock:  s.cfg.Clock,
		Logger: s.log.With("component", "fieldsync"),
		OnResult: func(f types.Field, err error) {
			metrics.RecordFieldSync(string(f), err)
		},
	})
	s.syncers[key] = fs
	return fs
}

// closeSyncer cancels pending saves for a lead that left the pipeline.
func (s *Service) closeSyncer(key string) {
	s.mu.Lock()
	fs, ok := s.syncers[key]
	delete(s.syncers, key)
	s.mu.Unlock()
	if ok {
		fs.Close()
	}
}

// FlushAll saves every pending field edit immediately.
func (s *Service) FlushAll(ctx context.Context) {
	s.mu.Lock()
	all := make([]*fieldsync.Syncer, 0, len(s.syncers))
	for _, fs := range s.syncers {
		all = append(all, fs)
	}
	s.mu.Unlock()

	for _, fs := range all {
		fs.Flush(ctx)
	}
}

// Close flushes pending edits and stops all field syncers.
func (s *Service) Close(ctx context.Context) {
	s.FlushAll(ctx)

	s.mu.Lock()
	all := s.syncers
	s.syncers = make(map[string]*fieldsync.Syncer)
	s.mu.Unlock()

	for _, fs := range all {
		fs.Close()
	}
}

// AutoArchive archives a materialized prospect whose apply window ran out.
func (s *Service) AutoArchive(ctx context.Context, id string) error {
	lead, ok := s.leads.Get(id)
	if !ok {
		return nil
	}
	c := timers.ApplyDeadline(lead, s.Now(), s.cfg.Windows)
	if !c.Eligible || !c.Expired {
		return nil
	}
	if err := s.archive(ctx, lead.ID); err != nil {
		s.publish(ctx, events.New(events.StructuralOpFailed, lead.ID, map[string]any{
			"action": "auto_archive",
			"error":  err.Error(),
		}))
		return err
	}
	s.markArchived(ctx, lead, events.LeadAutoArchived)
	metrics.RecordTimerEffect("auto_archive")
	return nil
}

// DropExpired removes an expired click-based prospect from view. Nothing was
// ever persisted for it, so there is nothing to archive.
func (s *Service) DropExpired(ctx context.Context, id string) {
	lead, ok := s.leads.Get(id)
	if !ok || lead.IsMaterialized {
		return
	}
	c := timers.ApplyDeadline(lead, s.Now(), s.cfg.Windows)
	if !c.Eligible || !c.Expired {
		return
	}
	s.remove(ctx, lead, events.LeadDropped)
	metrics.RecordTimerEffect("drop")
}

// FollowUpOverdue reports a lead whose follow-up window ran out.
func (s *Service) FollowUpOverdue(ctx context.Context, lead types.Lead) {
	s.log.Info("follow-up overdue", "lead", lead.ID, "company", lead.Company)
	s.publish(ctx, events.New(events.FollowUpOverdue, lead.ID, map[string]any{
		"company": lead.Company,
		"title":   lead.Title,
	}))
	metrics.RecordTimerEffect("follow_up_overdue")
}

var _ timers.Actions = (*Service)(nil)
