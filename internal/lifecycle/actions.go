package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/lead-tracker/internal/events"
	"github.com/jonathan/lead-tracker/internal/metrics"
	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/types"
)

// SetApplied moves a prospect to Lead, recording which artifacts were sent.
// The change is applied locally first and reverted if it cannot be persisted.
func (s *Service) SetApplied(ctx context.Context, id string, sent types.Artifacts) (types.Lead, error) {
	const action = "set_applied"
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}
	if st := lead.Stage(); st != types.StageProspect {
		return lead, s.failed(ctx, action, lead, &types.TransitionConflict{
			LeadID: lead.ID, From: st, To: types.StageLead, Reason: "lead is already applied",
		})
	}

	wasMaterialized := lead.IsMaterialized
	updated, err := s.leads.Optimistic(ctx, lead.Key(),
		func(l *types.Lead) error {
			l.Applied = true
			l.SentCV = sent.CV
			l.SentPortfolio = sent.Portfolio
			l.SentCoverLetter = sent.CoverLetter
			return nil
		},
		func(ctx context.Context, l types.Lead) error {
			res, err := s.mat.Ensure(ctx, l.Key())
			if err != nil {
				return err
			}
			if res.Created && !wasMaterialized {
				// The create payload already carried the applied facts.
				return nil
			}
			return s.update(ctx, res.ID, store.Fields{
				store.ColApplied:         true,
				store.ColSentCV:          sent.CV,
				store.ColSentPortfolio:   sent.Portfolio,
				store.ColSentCoverLetter: sent.CoverLetter,
			})
		},
	)
	if err != nil {
		return updated, s.failed(ctx, action, lead, err)
	}
	s.succeeded(ctx, action, updated)
	return updated, nil
}

// NotApplying discards a prospect the user decided not to apply to. A
// click-based lead is dropped locally; a durable one is archived in the store.
func (s *Service) NotApplying(ctx context.Context, id string) error {
	const action = "not_applying"
	lead, err := s.active(id)
	if err != nil {
		return err
	}
	if st := lead.Stage(); st != types.StageProspect {
		return s.failed(ctx, action, lead, &types.TransitionConflict{
			LeadID: lead.ID, From: st, To: types.StageProspect, Reason: "only prospects can be skipped",
		})
	}

	if !lead.IsMaterialized {
		s.remove(ctx, lead, events.LeadDropped)
		metrics.RecordTransition(action, nil)
		return nil
	}
	if err := s.archive(ctx, lead.ID); err != nil {
		return s.failed(ctx, action, lead, err)
	}
	s.markArchived(ctx, lead, events.LeadArchived)
	metrics.RecordTransition(action, nil)
	return nil
}

// AddOrRateInterview adds an upcoming interview or rates one. The first
// interview moves the lead from Lead to Opportunity.
func (s *Service) AddOrRateInterview(ctx context.Context, id string, in types.InterviewInput) (types.Lead, error) {
	const action = "interview"
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}
	if err := in.Validate(); err != nil {
		return lead, err
	}
	if !lead.Applied {
		return lead, s.failed(ctx, action, lead, &types.TransitionConflict{
			LeadID: lead.ID, From: lead.Stage(), To: types.StageOpportunity,
			Reason: "mark the lead as applied before adding interviews",
		})
	}

	ivs, changed, err := types.ApplyInterview(lead.Interviews, in)
	if err != nil {
		return lead, err
	}
	if !changed {
		return lead, nil
	}

	if _, err := s.ensureAndUpdate(ctx, lead, store.Fields{store.ColInterviews: ivs}); err != nil {
		return lead, s.failed(ctx, action, lead, err)
	}
	_, after, err := s.leads.Update(lead.Key(), func(l *types.Lead) error {
		l.Interviews = ivs
		return nil
	})
	if err != nil {
		return lead, err
	}
	updated := s.refreshAfter(ctx, lead.Key(), after)
	s.succeeded(ctx, action, updated)
	return updated, nil
}

// SetGotTheJob answers whether the user got the job.
//
// Yes on an applied lead moves it to Deal. No on an applied lead records the
// answer and archives it in one operation. No on a lead that was never
// applied to only removes it from view; yes is rejected.
//
// TODO: confirm with product whether the two "no" paths should both archive.
func (s *Service) SetGotTheJob(ctx context.Context, id string, got bool, startDate *time.Time) (types.Lead, error) {
	const action = "got_the_job"
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}

	if !lead.Applied {
		if got {
			return lead, s.failed(ctx, action, lead, &types.TransitionConflict{
				LeadID: lead.ID, From: lead.Stage(), To: types.StageDeal,
				Reason: "mark the lead as applied first",
			})
		}
		s.remove(ctx, lead, events.LeadDropped)
		return lead, nil
	}

	if !got {
		appID, err := s.ensureAndUpdate(ctx, lead, store.Fields{store.ColGotTheJob: false})
		if err == nil {
			if err = s.archive(ctx, appID); err != nil {
				s.restoreGotTheJob(ctx, appID, lead.GotTheJob)
			}
		}
		if err != nil {
			return lead, s.failed(ctx, action, lead, err)
		}
		lead.GotTheJob = types.Bool(false)
		s.markArchived(ctx, lead, events.LeadArchived)
		metrics.RecordTransition(action, nil)
		return lead, nil
	}

	fields := store.Fields{store.ColGotTheJob: true}
	if startDate != nil {
		fields[store.ColStartDate] = *startDate
	}
	if _, err := s.ensureAndUpdate(ctx, lead, fields); err != nil {
		return lead, s.failed(ctx, action, lead, err)
	}
	_, after, err := s.leads.Update(lead.Key(), func(l *types.Lead) error {
		l.GotTheJob = types.Bool(true)
		if startDate != nil {
			d := *startDate
			l.StartDate = &d
		}
		return nil
	})
	if err != nil {
		return lead, err
	}
	updated := s.refreshAfter(ctx, lead.Key(), after)
	s.succeeded(ctx, action, updated)
	return updated, nil
}

// restoreGotTheJob undoes the got-the-job patch of a rejection whose archive
// failed, so the store never holds a rejected but still active record.
func (s *Service) restoreGotTheJob(ctx context.Context, appID string, prior *bool) {
	var v any
	if prior != nil {
		v = *prior
	}
	if err := s.update(ctx, appID, store.Fields{store.ColGotTheJob: v}); err != nil {
		s.log.Error("failed to restore got_the_job after archive failure",
			"application", appID, "error", err)
	}
}

// ArchiveLead archives a lead on explicit request. Click-based prospects are
// discarded locally; anything else is materialized and archived in the store.
func (s *Service) ArchiveLead(ctx context.Context, id string) error {
	const action = "archive"
	lead, err := s.active(id)
	if err != nil {
		return err
	}
	if !lead.IsMaterialized && lead.Stage() == types.StageProspect {
		s.remove(ctx, lead, events.LeadDropped)
		return nil
	}

	res, err := s.mat.Ensure(ctx, lead.Key())
	if err == nil {
		err = s.archive(ctx, res.ID)
	}
	if err != nil {
		return s.failed(ctx, action, lead, err)
	}
	lead.ID = res.ID
	s.markArchived(ctx, lead, events.LeadArchived)
	metrics.RecordTransition(action, nil)
	return nil
}

// ToggleCollapsed flips the card's collapsed state.
func (s *Service) ToggleCollapsed(ctx context.Context, id string) (types.Lead, error) {
	const action = "collapse"
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}
	collapsed := !lead.Collapsed
	updated, err := s.leads.Optimistic(ctx, lead.Key(),
		func(l *types.Lead) error {
			l.Collapsed = collapsed
			return nil
		},
		func(ctx context.Context, l types.Lead) error {
			_, err := s.ensureAndUpdate(ctx, l, store.Fields{store.ColCollapsed: collapsed})
			return err
		},
	)
	if err != nil {
		return updated, s.failed(ctx, action, lead, err)
	}
	metrics.RecordTransition(action, nil)
	return updated, nil
}

// CompleteFollowUp records that the follow-up message was sent.
func (s *Service) CompleteFollowUp(ctx context.Context, id, message string) (types.Lead, error) {
	const action = "follow_up"
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return lead, ErrFollowUpMessageRequired
	}
	if !lead.Applied || lead.Stage() != types.StageLead {
		return lead, ErrFollowUpNotApplicable
	}
	if lead.FollowUpCompleted() {
		return lead, nil
	}

	now := s.Now()
	if _, err := s.ensureAndUpdate(ctx, lead, store.Fields{
		store.ColFollowUpCompletedAt: now,
		store.ColFollowUpMessage:     message,
	}); err != nil {
		return lead, s.failed(ctx, action, lead, err)
	}
	_, after, err := s.leads.Update(lead.Key(), func(l *types.Lead) error {
		l.FollowUpCompletedAt = &now
		l.FollowUpMessage = message
		return nil
	})
	if err != nil {
		return lead, err
	}
	s.succeeded(ctx, action, after)
	return after, nil
}

// AddContact attaches a new contact to the lead.
func (s *Service) AddContact(ctx context.Context, id string, c types.Contact) (types.Lead, error) {
	if err := c.Validate(); err != nil {
		return types.Lead{}, err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return s.changeContacts(ctx, "contact_add", id, func(cs []types.Contact) ([]types.Contact, error) {
		for _, existing := range cs {
			if existing.ID == c.ID {
				return nil, fmt.Errorf("%w: contact %s already exists", types.ErrInvalidInput, c.ID)
			}
		}
		return append(cs, c), nil
	})
}

// UpdateContact replaces an existing contact.
func (s *Service) UpdateContact(ctx context.Context, id string, c types.Contact) (types.Lead, error) {
	if err := c.Validate(); err != nil {
		return types.Lead{}, err
	}
	return s.changeContacts(ctx, "contact_update", id, func(cs []types.Contact) ([]types.Contact, error) {
		for i := range cs {
			if cs[i].ID == c.ID {
				cs[i] = c
				return cs, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrContactNotFound, c.ID)
	})
}

// DeleteContact removes a contact from the lead.
func (s *Service) DeleteContact(ctx context.Context, id string, contactID uuid.UUID) (types.Lead, error) {
	return s.changeContacts(ctx, "contact_delete", id, func(cs []types.Contact) ([]types.Contact, error) {
		for i := range cs {
			if cs[i].ID == contactID {
				return append(cs[:i], cs[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrContactNotFound, contactID)
	})
}

func (s *Service) changeContacts(
	ctx context.Context,
	action, id string,
	change func([]types.Contact) ([]types.Contact, error),
) (types.Lead, error) {
	lead, err := s.active(id)
	if err != nil {
		return types.Lead{}, err
	}
	contacts, err := change(lead.Clone().Contacts)
	if err != nil {
		return lead, err
	}

	if _, err := s.ensureAndUpdate(ctx, lead, store.Fields{store.ColContacts: contacts}); err != nil {
		return lead, s.failed(ctx, action, lead, err)
	}
	_, after, err := s.leads.Update(lead.Key(), func(l *types.Lead) error {
		l.Contacts = contacts
		return nil
	})
	if err != nil {
		return lead, err
	}
	updated := s.refreshAfter(ctx, lead.Key(), after)
	s.succeeded(ctx, action, updated)
	return updated, nil
}
