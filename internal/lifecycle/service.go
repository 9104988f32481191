// Package lifecycle implements the lead stage state machine: the user actions
// that move a lead through the pipeline and the timer effects that archive it.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jonathan/lead-tracker/internal/events"
	"github.com/jonathan/lead-tracker/internal/fieldsync"
	"github.com/jonathan/lead-tracker/internal/materialize"
	"github.com/jonathan/lead-tracker/internal/metrics"
	"github.com/jonathan/lead-tracker/internal/pipeline"
	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/timers"
	"github.com/jonathan/lead-tracker/internal/types"
)

// Errors returned by lifecycle actions in addition to the types taxonomy.
var (
	ErrFollowUpMessageRequired = errors.New("follow-up message is required")
	ErrFollowUpNotApplicable   = errors.New("follow-up only applies to applied leads without interviews")
	ErrContactNotFound         = errors.New("contact not found")
)

// Config configures a Service.
type Config struct {
	Quiet   time.Duration
	Windows timers.Windows
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Events  events.Publisher
}

// Service runs lead actions against the pipeline and the record store.
type Service struct {
	leads *pipeline.Aggregator
	mat   *materialize.Materializer
	store store.RecordStore // nil in degraded mode
	pub   events.Publisher
	cfg   Config
	log   *slog.Logger

	mu      sync.Mutex
	syncers map[string]*fieldsync.Syncer // by lead key
}

// New creates a Service. st may be nil, in which case only local actions on
// unmaterialized leads succeed.
func New(leads *pipeline.Aggregator, st store.RecordStore, cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Events == nil {
		cfg.Events = events.Discard{}
	}

	s := &Service{
		leads:   leads,
		store:   st,
		pub:     cfg.Events,
		cfg:     cfg,
		log:     cfg.Logger,
		syncers: make(map[string]*fieldsync.Syncer),
	}

	var creator materialize.Creator
	if st != nil {
		creator = st
	}
	leads.SetLocalEdits(s.unsavedEdits)
	s.mat = materialize.New(leads, creator, cfg.Logger)
	s.mat.OnMaterialized = s.onMaterialized
	s.mat.OnResult = metrics.RecordMaterialization
	return s
}

// Leads returns the pipeline aggregator.
func (s *Service) Leads() *pipeline.Aggregator {
	return s.leads
}

// Materializer returns the lazy materializer.
func (s *Service) Materializer() *materialize.Materializer {
	return s.mat
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.cfg.Clock.Now()
}

// Windows returns the configured timer windows.
func (s *Service) Windows() timers.Windows {
	return s.cfg.Windows
}

// Board returns the filtered pipeline with derived views.
func (s *Service) Board(f pipeline.Filter) pipeline.Board {
	return pipeline.NewBoard(f.Apply(s.leads.Snapshot()), s.Now(), s.cfg.Windows)
}

// View returns the derived view of one lead.
func (s *Service) View(id string) (pipeline.LeadView, error) {
	l, err := s.active(id)
	if err != nil {
		return pipeline.LeadView{}, err
	}
	return pipeline.NewView(l, s.Now(), s.cfg.Windows), nil
}

// Refresh reloads the pipeline from the store. It is the explicit retry
// path after a failed structural action.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.leads.Refresh(ctx); err != nil {
		s.log.Warn("pipeline refresh failed", "error", err)
		return err
	}
	s.updateGauges()
	s.publish(ctx, events.New(events.PipelineRefreshed, "", map[string]any{"leads": s.leads.Len()}))
	return nil
}

// unsavedEdits reports the field edits for a lead that are still waiting on
// (or in the middle of) their debounced save.
func (s *Service) unsavedEdits(key string) map[types.Field]any {
	s.mu.Lock()
	fs, ok := s.syncers[key]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return fs.Unsaved()
}

// IngestClick seeds an unmaterialized lead from a click event. Ingesting the
// same click twice returns the existing lead.
func (s *Service) IngestClick(ctx context.Context, evt types.ClickEvent) (types.Lead, error) {
	if err := evt.Validate(); err != nil {
		return types.Lead{}, err
	}
	lead, added := s.leads.Add(types.LeadFromClick(evt))
	if added {
		s.log.Info("click ingested", "lead", lead.ID, "company", lead.Company, "title", lead.Title)
		s.publish(ctx, events.New(events.LeadIngested, lead.ID, nil))
	}
	return lead, nil
}

// active returns a lead that is tracked and not archived.
func (s *Service) active(id string) (types.Lead, error) {
	l, ok := s.leads.Get(id)
	if !ok {
		return types.Lead{}, fmt.Errorf("%w: %s", types.ErrLeadNotFound, id)
	}
	if l.IsArchived {
		return types.Lead{}, fmt.Errorf("%w: %s", types.ErrLeadArchived, id)
	}
	return l, nil
}

// update patches a materialized application.
func (s *Service) update(ctx context.Context, applyingID string, fields store.Fields) error {
	if s.store == nil {
		return store.ErrUnavailable
	}
	if err := s.store.UpdateApplication(ctx, applyingID, fields); err != nil {
		return fmt.Errorf("failed to update application %s: %w", applyingID, err)
	}
	return nil
}

// archive archives a materialized application.
func (s *Service) archive(ctx context.Context, applyingID string) error {
	if s.store == nil {
		return store.ErrUnavailable
	}
	if err := s.store.ArchiveApplication(ctx, applyingID); err != nil {
		return fmt.Errorf("failed to archive application %s: %w", applyingID, err)
	}
	return nil
}

// ensureAndUpdate materializes the lead if needed, then patches it.
func (s *Service) ensureAndUpdate(ctx context.Context, lead types.Lead, fields store.Fields) (string, error) {
	res, err := s.mat.Ensure(ctx, lead.Key())
	if err != nil {
		return "", err
	}
	return res.ID, s.update(ctx, res.ID, fields)
}

// remove takes a lead out of the active pipeline and releases its resources.
func (s *Service) remove(ctx context.Context, lead types.Lead, evtType string) {
	dropped, ok := s.leads.Drop(lead.Key())
	if !ok {
		dropped = lead
	}
	s.closeSyncer(lead.Key())
	s.updateGauges()
	s.publish(ctx, events.New(evtType, dropped.ID, map[string]any{
		"company": dropped.Company,
		"title":   dropped.Title,
	}))
}

// markArchived records the archive locally and removes the lead from view.
func (s *Service) markArchived(ctx context.Context, lead types.Lead, evtType string) {
	now := s.Now()
	lead.IsArchived = true
	lead.ArchivedAt = &now
	s.remove(ctx, lead, evtType)
	s.log.Info("lead archived", "lead", lead.ID, "event", evtType)
}

func (s *Service) onMaterialized(ctx context.Context, oldID string, lead types.Lead) {
	s.publish(ctx, events.New(events.LeadMaterialized, lead.ID, map[string]any{"click_id": oldID}))
	_ = s.Refresh(ctx)
}

// refreshAfter re-derives the pipeline after a structural change and returns
// the lead's latest snapshot, falling back to fallback when it is gone.
func (s *Service) refreshAfter(ctx context.Context, key string, fallback types.Lead) types.Lead {
	_ = s.Refresh(ctx)
	if l, ok := s.leads.Get(key); ok {
		return l
	}
	return fallback
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.pub.Publish(ctx, evt); err != nil {
		s.log.Warn("event publish failed", "type", evt.Type, "error", err)
	}
}

func (s *Service) failed(ctx context.Context, action string, lead types.Lead, err error) error {
	metrics.RecordTransition(action, err)
	if types.IsTransitionConflict(err) {
		s.publish(ctx, events.New(events.TransitionRejected, lead.ID, map[string]any{
			"action": action,
			"reason": err.Error(),
		}))
		return err
	}
	s.log.Error("action failed", "action", action, "lead", lead.ID, "error", err)
	s.publish(ctx, events.New(events.StructuralOpFailed, lead.ID, map[string]any{
		"action": action,
		"error":  err.Error(),
	}))
	return err
}

func (s *Service) succeeded(ctx context.Context, action string, lead types.Lead) {
	metrics.RecordTransition(action, nil)
	s.updateGauges()
	s.publish(ctx, events.New(events.LeadUpdated, lead.ID, map[string]any{
		"action": action,
		"stage":  lead.Stage(),
	}))
}

func (s *Service) updateGauges() {
	for st, ls := range pipeline.GroupByStage(s.leads.Snapshot()) {
		metrics.SetActiveLeads(string(st), len(ls))
	}
}
