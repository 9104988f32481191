package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/lead-tracker/internal/types"
)

// Memory is an in-process Backend. It backs the "memory" store mode and
// tests; nothing survives a restart.
type Memory struct {
	mu     sync.Mutex
	apps   map[string]types.Lead
	bySrc  map[string]string
	clicks map[string]types.ClickEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		apps:   make(map[string]types.Lead),
		bySrc:  make(map[string]string),
		clicks: make(map[string]types.ClickEvent),
	}
}

// AddClick records a click event so ListLeads reports it until materialized.
func (m *Memory) AddClick(evt types.ClickEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks[evt.ClickID] = evt
}

// RecordClick implements the server's click recorder.
func (m *Memory) RecordClick(_ context.Context, evt types.ClickEvent) error {
	m.AddClick(evt)
	return nil
}

// CreateApplication creates an application. Creating twice for the same
// source returns the existing id.
func (m *Memory) CreateApplication(_ context.Context, in CreateApplicationInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.bySrc[in.SourceID]; ok {
		return id, nil
	}

	id := uuid.NewString()
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	clickID := ""
	if types.IsClickID(in.SourceID) {
		clickID = in.SourceID
	}
	l := types.Lead{
		ID:                    id,
		ClickID:               clickID,
		SourceJobID:           in.SourceJobID,
		Title:                 in.Title,
		Company:               in.Company,
		URL:                   in.URL,
		Applied:               in.Applied,
		SentCV:                in.SentCV,
		SentPortfolio:         in.SentPortfolio,
		SentCoverLetter:       in.SentCoverLetter,
		Notes:                 in.Notes,
		FollowUpMessage:       in.FollowUpMessage,
		InterviewPrepComplete: in.InterviewPrepComplete,
		Collapsed:             in.Collapsed,
		Interviews:            []types.Interview{},
		Contacts:              []types.Contact{},
		CreatedAt:             createdAt,
		IsMaterialized:        true,
	}
	if in.StartDate != nil {
		d := *in.StartDate
		l.StartDate = &d
	}
	m.apps[id] = l
	m.bySrc[in.SourceID] = id
	return id, nil
}

// UpdateApplication applies a partial field set.
func (m *Memory) UpdateApplication(_ context.Context, applyingID string, fields Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.apps[applyingID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, applyingID)
	}
	if err := ApplyFields(&l, fields); err != nil {
		return err
	}
	m.apps[applyingID] = l
	return nil
}

// ArchiveApplication marks an application archived.
func (m *Memory) ArchiveApplication(_ context.Context, applyingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.apps[applyingID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrApplicationNotFound, applyingID)
	}
	now := time.Now()
	l.IsArchived = true
	l.ArchivedAt = &now
	m.apps[applyingID] = l
	return nil
}

// Get returns a copy of the stored application.
func (m *Memory) Get(applyingID string) (types.Lead, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.apps[applyingID]
	if !ok {
		return types.Lead{}, false
	}
	return l.Clone(), true
}

// ListLeads returns active applications followed by unmaterialized clicks,
// each group ordered by creation time.
func (m *Memory) ListLeads(_ context.Context) ([]types.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var apps, clicks []types.Lead
	for _, l := range m.apps {
		if !l.IsArchived {
			apps = append(apps, l.Clone())
		}
	}
	for id, evt := range m.clicks {
		if _, done := m.bySrc[id]; done {
			continue
		}
		clicks = append(clicks, types.LeadFromClick(evt))
	}
	byCreated := func(ls []types.Lead) {
		sort.SliceStable(ls, func(i, j int) bool { return ls[i].CreatedAt.Before(ls[j].CreatedAt) })
	}
	byCreated(apps)
	byCreated(clicks)
	return append(apps, clicks...), nil
}
