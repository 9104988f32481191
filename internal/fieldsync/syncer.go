// Package fieldsync persists inline field edits after a quiet period, with one
// independent debounce timer per field.
package fieldsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/lead-tracker/internal/materialize"
	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/types"
)

// DefaultQuietPeriod is how long a field must stay unchanged before it is saved.
const DefaultQuietPeriod = 1500 * time.Millisecond

// saveTimeout bounds a single flush.
const saveTimeout = 30 * time.Second

// columns maps internal field names to the store's external names.
var columns = map[types.Field]string{
	types.FieldNotes:                 store.ColNotes,
	types.FieldFollowUpMessage:       store.ColFollowUpMessage,
	types.FieldInterviewPrepComplete: store.ColInterviewPrepComplete,
	types.FieldStartDate:             store.ColStartDate,
	types.FieldTitle:                 store.ColJobTitle,
	types.FieldCompany:               store.ColCompanyName,
}

// ExternalName translates an internal field name to the store's name.
func ExternalName(f types.Field) (string, error) {
	col, ok := columns[f]
	if !ok {
		return "", fmt.Errorf("%w: %s", types.ErrUnknownField, f)
	}
	return col, nil
}

// Ensurer returns a durable id for a lead.
type Ensurer interface {
	Ensure(ctx context.Context, leadID string) (materialize.Result, error)
}

// Patcher writes partial field sets.
type Patcher interface {
	UpdateApplication(ctx context.Context, applyingID string, fields store.Fields) error
}

// Config configures a Syncer.
type Config struct {
	Quiet  time.Duration
	Clock  clockwork.Clock
	Logger *slog.Logger
	// OnResult observes every flush outcome, for metrics.
	OnResult func(field types.Field, err error)
}

type pending struct {
	timer clockwork.Timer
	value any
	gen   uint64
}

// Syncer debounces saves for a single lead.
type Syncer struct {
	leadKey string
	ensurer Ensurer
	patcher Patcher
	cfg     Config

	mu       sync.Mutex
	pending  map[types.Field]*pending
	inflight map[types.Field]*pending // fired, store call not finished
	gen      uint64
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Syncer for the lead identified by leadKey (its stable key).
func New(leadKey string, ensurer Ensurer, patcher Patcher, cfg Config) *Syncer {
	if cfg.Quiet <= 0 {
		cfg.Quiet = DefaultQuietPeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Syncer{
		leadKey: leadKey,
		ensurer: ensurer,
		patcher: patcher,
		cfg:     cfg,
		pending:  make(map[types.Field]*pending),
		inflight: make(map[types.Field]*pending),
	}
}

// Save schedules value to be persisted for field once the field has been quiet
// for the configured period. A pending save for the same field is cancelled;
// other fields are not affected.
func (s *Syncer) Save(field types.Field, value any) error {
	if _, err := ExternalName(field); err != nil {
		return err
	}
	nv, err := types.NormalizeFieldValue(field, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("field sync closed")
	}

	if p, ok := s.pending[field]; ok {
		p.timer.Stop()
	}
	s.gen++
	gen := s.gen
	p := &pending{value: nv, gen: gen}
	p.timer = s.cfg.Clock.AfterFunc(s.cfg.Quiet, func() { s.fire(field, gen) })
	s.pending[field] = p
	return nil
}

// fire runs when a field's timer elapses. A stale generation means a newer
// edit replaced this one after the timer had already fired.
func (s *Syncer) fire(field types.Field, gen uint64) {
	s.mu.Lock()
	p, ok := s.pending[field]
	if !ok || p.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.pending, field)
	s.inflight[field] = p
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	s.persist(ctx, field, p.value)
	s.landed(field, p.gen)
}

// landed clears the in-flight marker unless a newer save took its place.
func (s *Syncer) landed(field types.Field, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.inflight[field]; ok && p.gen == gen {
		delete(s.inflight, field)
	}
}

// Unsaved returns the values of edits that have not reached the store yet,
// both waiting for their quiet period and currently being saved.
func (s *Syncer) Unsaved() map[types.Field]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 && len(s.inflight) == 0 {
		return nil
	}
	out := make(map[types.Field]any, len(s.pending)+len(s.inflight))
	for f, p := range s.inflight {
		out[f] = p.value
	}
	for f, p := range s.pending {
		out[f] = p.value
	}
	return out
}

// persist saves one field. Failures are logged and dropped; the local value
// stays as typed.
func (s *Syncer) persist(ctx context.Context, field types.Field, value any) {
	err := s.save(ctx, field, value)
	if s.cfg.OnResult != nil {
		s.cfg.OnResult(field, err)
	}
	if err != nil {
		s.cfg.Logger.Warn("field sync failed", "lead", s.leadKey, "field", field, "error", err)
		return
	}
	s.cfg.Logger.Debug("field synced", "lead", s.leadKey, "field", field)
}

func (s *Syncer) save(ctx context.Context, field types.Field, value any) error {
	col, err := ExternalName(field)
	if err != nil {
		return err
	}
	res, err := s.ensurer.Ensure(ctx, s.leadKey)
	if err != nil {
		return err
	}
	if err := s.patcher.UpdateApplication(ctx, res.ID, store.Fields{col: value}); err != nil {
		return &types.SyncError{LeadID: res.ID, Field: field, Err: err}
	}
	return nil
}

// Flush persists every pending field now instead of waiting for its timer.
func (s *Syncer) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := make(map[types.Field]*pending, len(s.pending))
	for f, p := range s.pending {
		p.timer.Stop()
		batch[f] = p
		s.inflight[f] = p
	}
	clear(s.pending)
	s.mu.Unlock()

	for f, p := range batch {
		s.persist(ctx, f, p.value)
		s.landed(f, p.gen)
	}
}

// Pending returns the number of fields waiting to be saved.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels all pending saves and waits for in-progress ones.
func (s *Syncer) Close() {
	s.mu.Lock()
	s.closed = true
	for _, p := range s.pending {
		p.timer.Stop()
	}
	clear(s.pending)
	s.mu.Unlock()
	s.wg.Wait()
}
