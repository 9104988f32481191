package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-tracker/internal/events"
	"github.com/jonathan/lead-tracker/internal/pipeline"
	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/timers"
	"github.com/jonathan/lead-tracker/internal/types"
)

type recorder struct {
	mu   sync.Mutex
	evts []events.Event
}

func (r *recorder) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evts = append(r.evts, evt)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.evts))
	for _, e := range r.evts {
		out = append(out, e.Type)
	}
	return out
}

// flakyStore fails updates while fail is set.
type flakyStore struct {
	*store.Memory
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyStore) UpdateApplication(ctx context.Context, id string, fields store.Fields) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return errors.New("store is down")
	}
	return f.Memory.UpdateApplication(ctx, id, fields)
}

type fixture struct {
	svc   *Service
	mem   *store.Memory
	clock *clockwork.FakeClock
	rec   *recorder
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, backend store.Backend, mem *store.Memory) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	rec := &recorder{}

	var loader store.Loader
	var rs store.RecordStore
	if backend != nil {
		loader = backend
		rs = backend
	}
	agg := pipeline.NewAggregator(loader, testLogger())
	svc := New(agg, rs, Config{
		Windows: timers.DefaultWindows(),
		Clock:   clock,
		Logger:  testLogger(),
		Events:  rec,
	})
	t.Cleanup(func() { svc.Close(context.Background()) })
	return &fixture{svc: svc, mem: mem, clock: clock, rec: rec}
}

func newMemoryFixture(t *testing.T) *fixture {
	mem := store.NewMemory()
	return newFixture(t, mem, mem)
}

func click(id string, at time.Time) types.ClickEvent {
	return types.ClickEvent{
		ClickID:     id,
		SourceJobID: "job-" + id,
		Title:       "Backend Engineer",
		Company:     "Acme",
		URL:         "https://jobs.example.com/acme/backend",
		ClickedAt:   at,
	}
}

func (f *fixture) ingest(t *testing.T, id string) types.Lead {
	t.Helper()
	l, err := f.svc.IngestClick(context.Background(), click(id, f.clock.Now()))
	require.NoError(t, err)
	return l
}

func TestIngestClick(t *testing.T) {
	f := newMemoryFixture(t)

	l := f.ingest(t, "click-1")
	assert.Equal(t, types.StageProspect, l.Stage())
	assert.False(t, l.IsMaterialized)

	again := f.ingest(t, "click-1")
	assert.Equal(t, l.ID, again.ID)
	assert.Equal(t, 1, f.svc.Leads().Len())
	assert.Equal(t, []string{events.LeadIngested}, f.rec.types())
}

func TestIngestClick_Invalid(t *testing.T) {
	f := newMemoryFixture(t)
	_, err := f.svc.IngestClick(context.Background(), types.ClickEvent{ClickID: "click-1"})
	assert.Error(t, err)
	assert.Equal(t, 0, f.svc.Leads().Len())
}

func TestLeadLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	// Applying materializes the lead and moves it to Lead.
	lead, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{CV: true, CoverLetter: true})
	require.NoError(t, err)
	assert.True(t, lead.IsMaterialized)
	assert.NotEqual(t, "click-1", lead.ID)
	assert.Equal(t, types.StageLead, lead.Stage())

	stored, ok := f.mem.Get(lead.ID)
	require.True(t, ok)
	assert.True(t, stored.Applied)
	assert.True(t, stored.SentCV)
	assert.False(t, stored.SentPortfolio)
	assert.True(t, stored.SentCoverLetter)
	assert.Equal(t, "click-1", stored.ClickID)

	// The old click id keeps resolving.
	byClick, ok := f.svc.Leads().Get("click-1")
	require.True(t, ok)
	assert.Equal(t, lead.ID, byClick.ID)

	// The first interview moves it to Opportunity.
	lead, err = f.svc.AddOrRateInterview(ctx, lead.ID, types.InterviewInput{
		Type: types.InterviewRecruiter,
		Date: f.clock.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, types.StageOpportunity, lead.Stage())
	require.Len(t, lead.Interviews, 1)
	assert.Equal(t, types.InterviewStatusUpcoming, lead.Interviews[0].Status())

	// Rating completes the pending interview; rating again is a no-op.
	rate := types.InterviewInput{Type: types.InterviewRecruiter, Rating: types.Bool(true)}
	lead, err = f.svc.AddOrRateInterview(ctx, lead.ID, rate)
	require.NoError(t, err)
	require.Len(t, lead.Interviews, 1)
	assert.Equal(t, types.InterviewStatusGood, lead.Interviews[0].Status())

	lead, err = f.svc.AddOrRateInterview(ctx, lead.ID, rate)
	require.NoError(t, err)
	assert.Len(t, lead.Interviews, 1)

	stored, _ = f.mem.Get(lead.ID)
	require.Len(t, stored.Interviews, 1)
	assert.True(t, stored.Interviews[0].Completed)

	// Got the job moves it to Deal.
	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	lead, err = f.svc.SetGotTheJob(ctx, lead.ID, true, &start)
	require.NoError(t, err)
	assert.Equal(t, types.StageDeal, lead.Stage())
	assert.Equal(t, 100, lead.Progress())

	stored, _ = f.mem.Get(lead.ID)
	require.NotNil(t, stored.GotTheJob)
	assert.True(t, *stored.GotTheJob)
	require.NotNil(t, stored.StartDate)
	assert.True(t, stored.StartDate.Equal(start))

	// Dragging the deal back clears the answer.
	lead, err = f.svc.MoveStage(ctx, lead.ID, types.StageOpportunity)
	require.NoError(t, err)
	assert.Equal(t, types.StageOpportunity, lead.Stage())
	stored, _ = f.mem.Get(lead.ID)
	assert.Nil(t, stored.GotTheJob)

	// Got the job "no" archives in one operation.
	_, err = f.svc.SetGotTheJob(ctx, lead.ID, false, nil)
	require.NoError(t, err)
	stored, _ = f.mem.Get(lead.ID)
	assert.True(t, stored.IsArchived)
	require.NotNil(t, stored.GotTheJob)
	assert.False(t, *stored.GotTheJob)

	_, ok = f.svc.Leads().Get(lead.ID)
	assert.False(t, ok)
	assert.Contains(t, f.rec.types(), events.LeadMaterialized)
	assert.Contains(t, f.rec.types(), events.LeadArchived)
}

func TestSetApplied_AlreadyApplied(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	_, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{})
	require.NoError(t, err)

	_, err = f.svc.SetApplied(ctx, "click-1", types.Artifacts{})
	assert.True(t, types.IsTransitionConflict(err))
}

func TestSetApplied_DegradedModeReverts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	f.ingest(t, "click-1")

	_, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{CV: true})
	require.Error(t, err)
	assert.True(t, types.IsMaterializationError(err))
	assert.ErrorIs(t, err, store.ErrUnavailable)

	l, ok := f.svc.Leads().Get("click-1")
	require.True(t, ok)
	assert.Equal(t, types.StageProspect, l.Stage())
	assert.False(t, l.SentCV)
	assert.Contains(t, f.rec.types(), events.StructuralOpFailed)
}

func TestNotApplying(t *testing.T) {
	ctx := context.Background()

	t.Run("click-based lead is dropped locally", func(t *testing.T) {
		f := newFixture(t, nil, nil)
		f.ingest(t, "click-1")

		require.NoError(t, f.svc.NotApplying(ctx, "click-1"))
		assert.Equal(t, 0, f.svc.Leads().Len())
		assert.Contains(t, f.rec.types(), events.LeadDropped)
	})

	t.Run("materialized prospect is archived", func(t *testing.T) {
		f := newMemoryFixture(t)
		id, err := f.mem.CreateApplication(ctx, store.CreateApplicationInput{
			SourceID: "board-42", Title: "SRE", Company: "Globex", CreatedAt: f.clock.Now(),
		})
		require.NoError(t, err)
		require.NoError(t, f.svc.Refresh(ctx))

		require.NoError(t, f.svc.NotApplying(ctx, id))
		stored, _ := f.mem.Get(id)
		assert.True(t, stored.IsArchived)
		assert.Equal(t, 0, f.svc.Leads().Len())
	})

	t.Run("applied lead is rejected", func(t *testing.T) {
		f := newMemoryFixture(t)
		f.ingest(t, "click-1")
		_, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{})
		require.NoError(t, err)

		err = f.svc.NotApplying(ctx, "click-1")
		assert.True(t, types.IsTransitionConflict(err))
	})
}

func TestSetGotTheJob_NotApplied(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	_, err := f.svc.SetGotTheJob(ctx, "click-1", true, nil)
	assert.True(t, types.IsTransitionConflict(err))

	_, err = f.svc.SetGotTheJob(ctx, "click-1", false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, f.svc.Leads().Len())

	leads, err := f.mem.ListLeads(ctx)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestAddOrRateInterview_RequiresApplied(t *testing.T) {
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	_, err := f.svc.AddOrRateInterview(context.Background(), "click-1", types.InterviewInput{
		Type: types.InterviewTechnical,
		Date: f.clock.Now(),
	})
	assert.True(t, types.IsTransitionConflict(err))
}

func TestArchiveLead(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")
	f.ingest(t, "click-2")

	require.NoError(t, f.svc.ArchiveLead(ctx, "click-1"))
	_, ok := f.svc.Leads().Get("click-1")
	assert.False(t, ok)

	applied, err := f.svc.SetApplied(ctx, "click-2", types.Artifacts{})
	require.NoError(t, err)
	require.NoError(t, f.svc.ArchiveLead(ctx, "click-2"))

	stored, _ := f.mem.Get(applied.ID)
	assert.True(t, stored.IsArchived)

	err = f.svc.ArchiveLead(ctx, "click-2")
	assert.ErrorIs(t, err, types.ErrLeadNotFound)
}

func TestMoveStage(t *testing.T) {
	ctx := context.Background()

	t.Run("prospect to lead applies", func(t *testing.T) {
		f := newMemoryFixture(t)
		f.ingest(t, "click-1")

		l, err := f.svc.MoveStage(ctx, "click-1", types.StageLead)
		require.NoError(t, err)
		assert.Equal(t, types.StageLead, l.Stage())
		assert.True(t, l.IsMaterialized)
	})

	t.Run("lead back to prospect un-applies", func(t *testing.T) {
		f := newMemoryFixture(t)
		f.ingest(t, "click-1")
		l, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{CV: true})
		require.NoError(t, err)

		l, err = f.svc.MoveStage(ctx, l.ID, types.StageProspect)
		require.NoError(t, err)
		assert.Equal(t, types.StageProspect, l.Stage())

		stored, _ := f.mem.Get(l.ID)
		assert.False(t, stored.Applied)
		assert.False(t, stored.SentCV)
	})

	t.Run("conflicts", func(t *testing.T) {
		f := newMemoryFixture(t)
		f.ingest(t, "click-1")

		for _, target := range []types.Stage{types.StageOpportunity, types.StageDeal} {
			_, err := f.svc.MoveStage(ctx, "click-1", target)
			assert.True(t, types.IsTransitionConflict(err), "target %s", target)
		}
		assert.Contains(t, f.rec.types(), events.TransitionRejected)
	})

	t.Run("same stage is a no-op", func(t *testing.T) {
		f := newMemoryFixture(t)
		f.ingest(t, "click-1")

		l, err := f.svc.MoveStage(ctx, "click-1", types.StageProspect)
		require.NoError(t, err)
		assert.False(t, l.IsMaterialized)
	})

	t.Run("failed persist reverts", func(t *testing.T) {
		mem := store.NewMemory()
		fs := &flakyStore{Memory: mem}
		f := newFixture(t, fs, mem)
		f.ingest(t, "click-1")
		l, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{})
		require.NoError(t, err)

		fs.setFail(true)
		_, err = f.svc.MoveStage(ctx, l.ID, types.StageProspect)
		require.Error(t, err)

		cur, ok := f.svc.Leads().Get(l.ID)
		require.True(t, ok)
		assert.Equal(t, types.StageLead, cur.Stage())
		assert.Contains(t, f.rec.types(), events.StructuralOpFailed)
	})
}

func TestToggleCollapsed(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	l, err := f.svc.ToggleCollapsed(ctx, "click-1")
	require.NoError(t, err)
	assert.True(t, l.Collapsed)
	assert.True(t, l.IsMaterialized)

	stored, _ := f.mem.Get(l.ID)
	assert.True(t, stored.Collapsed)

	l, err = f.svc.ToggleCollapsed(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, l.Collapsed)
}

func TestCompleteFollowUp(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	_, err := f.svc.CompleteFollowUp(ctx, "click-1", "Checking in")
	assert.ErrorIs(t, err, ErrFollowUpNotApplicable)

	l, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{})
	require.NoError(t, err)

	_, err = f.svc.CompleteFollowUp(ctx, l.ID, "   ")
	assert.ErrorIs(t, err, ErrFollowUpMessageRequired)

	l, err = f.svc.CompleteFollowUp(ctx, l.ID, "  Checking in on my application  ")
	require.NoError(t, err)
	assert.True(t, l.FollowUpCompleted())
	assert.Equal(t, "Checking in on my application", l.FollowUpMessage)

	stored, _ := f.mem.Get(l.ID)
	require.NotNil(t, stored.FollowUpCompletedAt)
	assert.True(t, stored.FollowUpCompletedAt.Equal(f.clock.Now()))

	f.clock.Advance(time.Hour)
	again, err := f.svc.CompleteFollowUp(ctx, l.ID, "another")
	require.NoError(t, err)
	assert.Equal(t, "Checking in on my application", again.FollowUpMessage)
}

func TestContacts(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	_, err := f.svc.AddContact(ctx, "click-1", types.Contact{Name: "Jane", Email: "not-an-email"})
	require.Error(t, err)

	l, err := f.svc.AddContact(ctx, "click-1", types.Contact{Name: "Jane Doe", Email: "jane@acme.io"})
	require.NoError(t, err)
	require.Len(t, l.Contacts, 1)
	c := l.Contacts[0]
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.True(t, l.IsMaterialized)
	assert.Equal(t, types.StageProspect, l.Stage())

	c.Phone = "+1 555 0100"
	l, err = f.svc.UpdateContact(ctx, l.ID, c)
	require.NoError(t, err)
	require.Len(t, l.Contacts, 1)
	assert.Equal(t, "+1 555 0100", l.Contacts[0].Phone)

	_, err = f.svc.DeleteContact(ctx, l.ID, uuid.New())
	assert.ErrorIs(t, err, ErrContactNotFound)

	l, err = f.svc.DeleteContact(ctx, l.ID, c.ID)
	require.NoError(t, err)
	assert.Empty(t, l.Contacts)

	stored, _ := f.mem.Get(l.ID)
	assert.Empty(t, stored.Contacts)
}

func TestSaveField_Debounced(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	for _, v := range []string{"a", "ab", "abc"} {
		l, err := f.svc.SaveField(ctx, "click-1", types.FieldNotes, v)
		require.NoError(t, err)
		assert.Equal(t, v, l.Notes)
		f.clock.Advance(time.Second)
	}

	cur, _ := f.svc.Leads().Get("click-1")
	assert.False(t, cur.IsMaterialized)

	f.clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		l, ok := f.svc.Leads().Get("click-1")
		if !ok || !l.IsMaterialized {
			return false
		}
		stored, ok := f.mem.Get(l.ID)
		return ok && stored.Notes == "abc"
	}, time.Second, 10*time.Millisecond)
}

func TestSaveField_Invalid(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	_, err := f.svc.SaveField(ctx, "click-1", types.Field("salary"), "lots")
	assert.ErrorIs(t, err, types.ErrUnknownField)

	_, err = f.svc.SaveField(ctx, "click-1", types.FieldInterviewPrepComplete, "yes")
	assert.ErrorIs(t, err, types.ErrInvalidFieldValue)
}

func TestFlushAll(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")

	_, err := f.svc.SaveField(ctx, "click-1", types.FieldTitle, "Staff Engineer")
	require.NoError(t, err)
	f.svc.FlushAll(ctx)

	l, ok := f.svc.Leads().Get("click-1")
	require.True(t, ok)
	require.True(t, l.IsMaterialized)
	stored, _ := f.mem.Get(l.ID)
	assert.Equal(t, "Staff Engineer", stored.Title)
}

func TestTimerEffects(t *testing.T) {
	ctx := context.Background()

	t.Run("expired click is dropped without touching the store", func(t *testing.T) {
		f := newMemoryFixture(t)
		_, err := f.svc.IngestClick(ctx, click("click-old", f.clock.Now().Add(-48*time.Hour-time.Minute)))
		require.NoError(t, err)

		sched := timers.NewScheduler(f.svc.Leads(), f.svc, timers.Config{Clock: f.clock, Logger: testLogger()})
		res := sched.SweepOnce(ctx)
		assert.Equal(t, 1, res.Dropped)
		assert.Equal(t, 0, f.svc.Leads().Len())

		leads, err := f.mem.ListLeads(ctx)
		require.NoError(t, err)
		assert.Empty(t, leads)
	})

	t.Run("expired application is auto-archived", func(t *testing.T) {
		f := newMemoryFixture(t)
		id, err := f.mem.CreateApplication(ctx, store.CreateApplicationInput{
			SourceID:  "board-7",
			Title:     "Platform Engineer",
			Company:   "Initech",
			CreatedAt: f.clock.Now().Add(-48*time.Hour - time.Minute),
		})
		require.NoError(t, err)
		require.NoError(t, f.svc.Refresh(ctx))

		sched := timers.NewScheduler(f.svc.Leads(), f.svc, timers.Config{Clock: f.clock, Logger: testLogger()})
		res := sched.SweepOnce(ctx)
		assert.Equal(t, 1, res.Archived)

		stored, _ := f.mem.Get(id)
		assert.True(t, stored.IsArchived)
		assert.Equal(t, 0, f.svc.Leads().Len())
		assert.Contains(t, f.rec.types(), events.LeadAutoArchived)
	})

	t.Run("follow-up overdue fires once", func(t *testing.T) {
		f := newMemoryFixture(t)
		f.ingest(t, "click-1")
		_, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{})
		require.NoError(t, err)

		sched := timers.NewScheduler(f.svc.Leads(), f.svc, timers.Config{Clock: f.clock, Logger: testLogger()})
		assert.Equal(t, 0, sched.SweepOnce(ctx).Overdue)

		f.clock.Advance(49 * time.Hour)
		assert.Equal(t, 1, sched.SweepOnce(ctx).Overdue)
		assert.Equal(t, 0, sched.SweepOnce(ctx).Overdue)
		assert.Contains(t, f.rec.types(), events.FollowUpOverdue)
	})
}

func TestBoard(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")
	f.ingest(t, "click-2")
	_, err := f.svc.SetApplied(ctx, "click-2", types.Artifacts{})
	require.NoError(t, err)

	b := f.svc.Board(pipeline.Filter{})
	assert.Equal(t, 2, b.Total)
	assert.Len(t, b.Buckets[types.StageProspect], 1)
	assert.Len(t, b.Buckets[types.StageLead], 1)

	v, err := f.svc.View("click-1")
	require.NoError(t, err)
	require.NotNil(t, v.ApplyDeadline)
	assert.Equal(t, 48*time.Hour, v.ApplyDeadline.Remaining)
}

func TestSaveField_UnsavedEditSurvivesRefresh(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-1")
	lead, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{})
	require.NoError(t, err)

	_, err = f.svc.SaveField(ctx, lead.ID, types.FieldNotes, "typing in progress")
	require.NoError(t, err)

	// A structural action refreshes from the store before the notes are saved.
	lead, err = f.svc.AddOrRateInterview(ctx, lead.ID, types.InterviewInput{
		Type: types.InterviewTechnical,
		Date: f.clock.Now().Add(5 * 24 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "typing in progress", lead.Notes)
	require.Len(t, lead.Interviews, 1)

	cur, ok := f.svc.Leads().Get(lead.ID)
	require.True(t, ok)
	assert.Equal(t, "typing in progress", cur.Notes)

	f.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		stored, ok := f.mem.Get(lead.ID)
		return ok && stored.Notes == "typing in progress"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, f.svc.Refresh(ctx))
	cur, _ = f.svc.Leads().Get(lead.ID)
	assert.Equal(t, "typing in progress", cur.Notes)
}

// archiveFailStore rejects every archive.
type archiveFailStore struct {
	*store.Memory
}

func (archiveFailStore) ArchiveApplication(context.Context, string) error {
	return errors.New("archive rejected")
}

func TestSetGotTheJob_NoRestoresAnswerWhenArchiveFails(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	f := newFixture(t, archiveFailStore{mem}, mem)
	f.ingest(t, "click-1")
	lead, err := f.svc.SetApplied(ctx, "click-1", types.Artifacts{CV: true})
	require.NoError(t, err)

	_, err = f.svc.SetGotTheJob(ctx, lead.ID, false, nil)
	require.Error(t, err)

	stored, ok := f.mem.Get(lead.ID)
	require.True(t, ok)
	assert.False(t, stored.IsArchived)
	assert.Nil(t, stored.GotTheJob)

	cur, ok := f.svc.Leads().Get(lead.ID)
	require.True(t, ok)
	assert.Nil(t, cur.GotTheJob)
	assert.Equal(t, types.StageLead, cur.Stage())
}

func TestDropExpired_ChecksDeadline(t *testing.T) {
	ctx := context.Background()
	f := newMemoryFixture(t)
	f.ingest(t, "click-fresh")

	f.svc.DropExpired(ctx, "click-fresh")
	_, ok := f.svc.Leads().Get("click-fresh")
	assert.True(t, ok, "a prospect inside its apply window stays")

	_, err := f.svc.IngestClick(ctx, click("click-old", f.clock.Now().Add(-72*time.Hour)))
	require.NoError(t, err)
	_, _, err = f.svc.Leads().Update("click-old", func(l *types.Lead) error {
		l.Applied = true
		return nil
	})
	require.NoError(t, err)

	f.svc.DropExpired(ctx, "click-old")
	_, ok = f.svc.Leads().Get("click-old")
	assert.True(t, ok, "an applied lead is no longer subject to the apply deadline")
	assert.NotContains(t, f.rec.types(), events.LeadDropped)
}
