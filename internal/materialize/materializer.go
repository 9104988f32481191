// Package materialize turns click-based leads into durable application
// records, creating at most one record per lead no matter how many callers
// need it at the same time.
package materialize

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/types"
)

// Leads is the part of the pipeline aggregator the materializer needs.
type Leads interface {
	Get(id string) (types.Lead, bool)
	Rekey(oldID, newID string) (types.Lead, error)
}

// Creator creates application records.
type Creator interface {
	CreateApplication(ctx context.Context, in store.CreateApplicationInput) (string, error)
}

// Result is the outcome of Ensure.
type Result struct {
	// ID is the durable application id.
	ID string
	// Created is true only for the caller whose call performed the creation.
	Created bool
}

// Materializer guarantees a durable record exists before a lead is mutated.
type Materializer struct {
	group   singleflight.Group
	leads   Leads
	creator Creator
	log     *slog.Logger

	// OnMaterialized runs once per successful creation, after the lead has
	// been re-keyed.
	OnMaterialized func(ctx context.Context, oldID string, lead types.Lead)
	// OnResult observes every creation attempt, for metrics.
	OnResult func(err error)
}

// New creates a Materializer. creator may be nil when no store is configured;
// every unmaterialized lead then fails with a MaterializationError.
func New(leads Leads, creator Creator, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{leads: leads, creator: creator, log: logger}
}

type flight struct {
	id      string
	created bool
}

// Ensure returns the durable id of the lead, creating the application record
// if needed. Concurrent calls for the same lead share one creation.
func (m *Materializer) Ensure(ctx context.Context, leadID string) (Result, error) {
	lead, ok := m.leads.Get(leadID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", types.ErrLeadNotFound, leadID)
	}
	if lead.IsMaterialized {
		return Result{ID: lead.ID}, nil
	}
	if m.creator == nil {
		return Result{}, &types.MaterializationError{LeadID: leadID, Err: store.ErrUnavailable}
	}

	key := lead.Key()
	ran := false
	ch := m.group.DoChan(key, func() (any, error) {
		ran = true
		return m.create(context.WithoutCancel(ctx), key)
	})

	select {
	case <-ctx.Done():
		// The flight keeps running for the other callers.
		return Result{}, &types.MaterializationError{LeadID: leadID, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Result{}, &types.MaterializationError{LeadID: leadID, Err: res.Err}
		}
		f := res.Val.(flight)
		return Result{ID: f.id, Created: ran && f.created}, nil
	}
}

// create runs inside the flight. The create payload is read from the current
// snapshot so edits made while waiting are included.
func (m *Materializer) create(ctx context.Context, key string) (flight, error) {
	cur, ok := m.leads.Get(key)
	if !ok {
		return flight{}, fmt.Errorf("%w: %s", types.ErrLeadNotFound, key)
	}
	if cur.IsMaterialized {
		return flight{id: cur.ID}, nil
	}

	id, err := m.creator.CreateApplication(ctx, store.CreateInputFromLead(cur))
	if m.OnResult != nil {
		m.OnResult(err)
	}
	if err != nil {
		m.log.Error("create application failed", "lead", cur.ID, "error", err)
		return flight{}, err
	}

	lead, err := m.leads.Rekey(cur.ID, id)
	if err != nil {
		// The lead left the collection while we were creating; the record
		// exists regardless.
		m.log.Warn("materialized lead no longer tracked", "lead", cur.ID, "application", id, "error", err)
		return flight{id: id, created: true}, nil
	}
	m.log.Info("lead materialized", "click", cur.ID, "application", id)

	if m.OnMaterialized != nil {
		m.OnMaterialized(ctx, cur.ID, lead)
	}
	return flight{id: id, created: true}, nil
}
