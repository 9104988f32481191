// Package pipeline owns the in-memory lead collection, buckets it by stage and
// reconciles optimistic local changes with the record store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/types"
)

// Aggregator is the single owner of the lead collection. Readers only ever
// get deep copies; all writes go through its methods.
type Aggregator struct {
	mu      sync.RWMutex
	leads   map[string]types.Lead
	order   []string
	aliases map[string]string // old identity -> current identity

	loader store.Loader
	edits  LocalEdits
	log    *slog.Logger
}

// LocalEdits returns field values for a lead (by stable key) that were edited
// locally but have not reached the store yet.
type LocalEdits func(key string) map[types.Field]any

// NewAggregator creates an empty aggregator. loader may be nil, in which case
// Refresh only keeps what is already in memory.
func NewAggregator(loader store.Loader, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		leads:   make(map[string]types.Lead),
		aliases: make(map[string]string),
		loader:  loader,
		log:     logger,
	}
}

// SetLocalEdits installs the source of unsaved edits that Refresh keeps on
// top of the store's copy of a lead.
func (a *Aggregator) SetLocalEdits(fn LocalEdits) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.edits = fn
}

// resolve follows identity aliases. Caller must hold mu.
func (a *Aggregator) resolve(id string) string {
	for range len(a.aliases) + 1 {
		next, ok := a.aliases[id]
		if !ok {
			break
		}
		id = next
	}
	return id
}

// Resolve returns the current identity for id.
func (a *Aggregator) Resolve(id string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.resolve(id)
}

// Get returns a copy of the lead, looking through re-keyed identities.
func (a *Aggregator) Get(id string) (types.Lead, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	l, ok := a.leads[a.resolve(id)]
	if !ok {
		return types.Lead{}, false
	}
	return l.Clone(), true
}

// Add inserts a lead. If a lead with the same identity or key already exists
// the existing lead is returned and added is false.
func (a *Aggregator) Add(l types.Lead) (types.Lead, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range []string{l.ID, l.Key()} {
		if existing, ok := a.leads[a.resolve(id)]; ok {
			return existing.Clone(), false
		}
	}
	c := l.Clone()
	a.leads[c.ID] = c
	a.order = append(a.order, c.ID)
	return c.Clone(), true
}

// Replace swaps in a new snapshot of an existing lead.
func (a *Aggregator) Replace(l types.Lead) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.resolve(l.ID)
	if _, ok := a.leads[id]; !ok {
		return fmt.Errorf("%w: %s", types.ErrLeadNotFound, l.ID)
	}
	c := l.Clone()
	c.ID = id
	a.leads[id] = c
	return nil
}

// Update applies fn to a copy of the lead and stores the result atomically.
// If fn returns an error nothing is stored.
func (a *Aggregator) Update(id string, fn func(*types.Lead) error) (before, after types.Lead, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.resolve(id)
	l, ok := a.leads[cur]
	if !ok {
		return types.Lead{}, types.Lead{}, fmt.Errorf("%w: %s", types.ErrLeadNotFound, id)
	}
	before = l.Clone()
	next := l.Clone()
	if err := fn(&next); err != nil {
		return before, before, err
	}
	next.ID = cur
	a.leads[cur] = next
	return before, next.Clone(), nil
}

// Rekey moves a lead to its durable identity after materialization. Lookups by
// the old identity keep working.
func (a *Aggregator) Rekey(oldID, newID string) (types.Lead, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.resolve(oldID)
	l, ok := a.leads[cur]
	if !ok {
		return types.Lead{}, fmt.Errorf("%w: %s", types.ErrLeadNotFound, oldID)
	}
	if cur == newID {
		return l.Clone(), nil
	}

	l.ID = newID
	l.IsMaterialized = true
	delete(a.leads, cur)
	a.leads[newID] = l
	a.aliases[cur] = newID
	if i := slices.Index(a.order, cur); i >= 0 {
		a.order[i] = newID
	}
	a.log.Debug("lead re-keyed", "from", cur, "to", newID)
	return l.Clone(), nil
}

// Drop removes a lead from the active collection and returns it.
func (a *Aggregator) Drop(id string) (types.Lead, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur := a.resolve(id)
	l, ok := a.leads[cur]
	if !ok {
		return types.Lead{}, false
	}
	delete(a.leads, cur)
	a.order = slices.DeleteFunc(a.order, func(x string) bool { return x == cur })
	return l.Clone(), true
}

// Snapshot returns copies of all active leads in insertion order.
func (a *Aggregator) Snapshot() []types.Lead {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]types.Lead, 0, len(a.order))
	for _, id := range a.order {
		l := a.leads[id]
		if l.IsArchived {
			continue
		}
		out = append(out, l.Clone())
	}
	return out
}

// Len returns the number of leads held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.leads)
}

// Buckets returns the filtered leads grouped by stage.
func (a *Aggregator) Buckets(f Filter) map[types.Stage][]types.Lead {
	return GroupByStage(f.Apply(a.Snapshot()))
}

// Refresh reloads the collection from the loader. Materialized leads are
// replaced by the store's version; local unmaterialized leads are kept unless
// the store now knows them.
func (a *Aggregator) Refresh(ctx context.Context) error {
	if a.loader == nil {
		return nil
	}
	fresh, err := a.loader.ListLeads(ctx)
	if err != nil {
		return fmt.Errorf("failed to load leads: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	leads := make(map[string]types.Lead, len(fresh))
	order := make([]string, 0, len(fresh))
	for _, l := range fresh {
		if l.IsArchived {
			continue
		}
		if _, dup := leads[l.ID]; dup {
			continue
		}
		fl := l.Clone()
		a.keepLocalEdits(&fl)
		leads[l.ID] = fl
		order = append(order, l.ID)
		if l.IsMaterialized && l.ClickID != "" && l.ClickID != l.ID {
			a.aliases[l.ClickID] = l.ID
		}
	}

	for _, id := range a.order {
		l := a.leads[id]
		if l.IsMaterialized {
			continue
		}
		if _, known := leads[a.resolve(id)]; known {
			continue
		}
		leads[id] = l
		order = append(order, id)
	}

	a.leads = leads
	a.order = order
	a.log.Debug("pipeline refreshed", "leads", len(order))
	return nil
}

// keepLocalEdits overlays unsaved edits on a lead loaded from the store.
// Caller must hold mu.
func (a *Aggregator) keepLocalEdits(l *types.Lead) {
	if a.edits == nil {
		return
	}
	for f, v := range a.edits(l.Key()) {
		if err := types.ApplyField(l, f, v); err != nil {
			a.log.Warn("unsaved edit not reapplied", "lead", l.ID, "field", f, "error", err)
		}
	}
}

// Optimistic applies mutate locally, then calls persist with the updated
// snapshot. If persist fails the stage-deciding fields are restored to their
// prior values and the persist error is returned.
func (a *Aggregator) Optimistic(
	ctx context.Context,
	id string,
	mutate func(*types.Lead) error,
	persist func(context.Context, types.Lead) error,
) (types.Lead, error) {
	before, after, err := a.Update(id, mutate)
	if err != nil {
		return before, err
	}
	if err := persist(ctx, after); err != nil {
		_, _, rerr := a.Update(before.Key(), func(l *types.Lead) error {
			RestoreStageFields(l, before, after)
			return nil
		})
		if rerr != nil {
			a.log.Warn("optimistic revert skipped", "lead", before.ID, "error", rerr)
		}
		return before, err
	}
	cur, ok := a.Get(before.Key())
	if !ok {
		return after, nil
	}
	return cur, nil
}

// RestoreStageFields puts back the stage-deciding fields that a failed
// optimistic change moved from prior to attempted. Fields the change did not
// touch keep their current value, so concurrent edits survive the revert.
// Identity and inline-edited fields are left alone.
func RestoreStageFields(l *types.Lead, prior, attempted types.Lead) {
	p := prior.Clone()
	if attempted.Applied != p.Applied {
		l.Applied = p.Applied
	}
	if attempted.SentCV != p.SentCV {
		l.SentCV = p.SentCV
	}
	if attempted.SentPortfolio != p.SentPortfolio {
		l.SentPortfolio = p.SentPortfolio
	}
	if attempted.SentCoverLetter != p.SentCoverLetter {
		l.SentCoverLetter = p.SentCoverLetter
	}
	if !equalPtr(attempted.GotTheJob, p.GotTheJob, func(a, b bool) bool { return a == b }) {
		l.GotTheJob = p.GotTheJob
	}
	if !equalPtr(attempted.StartDate, p.StartDate, time.Time.Equal) {
		l.StartDate = p.StartDate
	}
	if !reflect.DeepEqual(attempted.Interviews, p.Interviews) {
		l.Interviews = p.Interviews
	}
	if attempted.Collapsed != p.Collapsed {
		l.Collapsed = p.Collapsed
	}
	if !equalPtr(attempted.FollowUpCompletedAt, p.FollowUpCompletedAt, time.Time.Equal) {
		l.FollowUpCompletedAt = p.FollowUpCompletedAt
	}
}

func equalPtr[T any](a, b *T, eq func(T, T) bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return eq(*a, *b)
}
