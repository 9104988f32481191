package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/lead-tracker/internal/timers"
	"github.com/jonathan/lead-tracker/internal/types"
)

func sampleLeads() []types.Lead {
	return []types.Lead{
		{ID: "1", Title: "Go Engineer", Company: "Acme"},
		{ID: "2", Title: "SRE", Company: "Globex", Applied: true, Notes: "referral from Kim"},
		{ID: "3", Title: "Data Engineer", Company: "Initech", Applied: true,
			Contacts: []types.Contact{{Name: "Pat Lee", Email: "pat@initech.com"}}},
		{ID: "4", Title: "Archived", Company: "Acme", IsArchived: true},
	}
}

func ids(ls []types.Lead) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	leads := sampleLeads()

	tests := []struct {
		name     string
		filter   Filter
		expected []string
	}{
		{name: "zero filter hides archived", filter: Filter{}, expected: []string{"1", "2", "3"}},
		{name: "company", filter: Filter{Search: "acme"}, expected: []string{"1"}},
		{name: "title", filter: Filter{Search: "ENGINEER"}, expected: []string{"1", "3"}},
		{name: "notes", filter: Filter{Search: "kim"}, expected: []string{"2"}},
		{name: "contact email", filter: Filter{Search: "pat@"}, expected: []string{"3"}},
		{name: "stage", filter: Filter{Stages: []types.Stage{types.StageLead}}, expected: []string{"2", "3"}},
		{name: "stage and search", filter: Filter{Search: "sre", Stages: []types.Stage{types.StageLead}}, expected: []string{"2"}},
		{name: "no match", filter: Filter{Search: "zzz"}, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ids(tt.filter.Apply(leads)))
		})
	}
}

func TestFilter_DoesNotModifyInput(t *testing.T) {
	leads := sampleLeads()
	Filter{Search: "acme"}.Apply(leads)
	assert.Equal(t, sampleLeads(), leads)
}

func TestGroupByStage_AllStagesPresent(t *testing.T) {
	b := GroupByStage(nil)
	for _, st := range types.Stages {
		v, ok := b[st]
		assert.True(t, ok)
		assert.Empty(t, v)
	}
}

func TestNewBoard(t *testing.T) {
	now := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	created := now.Add(-47 * time.Hour)
	leads := []types.Lead{
		{ID: "p", CreatedAt: created},
		{ID: "l", Applied: true, CreatedAt: now.Add(-50 * time.Hour)},
	}

	b := NewBoard(leads, now, timers.DefaultWindows())
	assert.Equal(t, 2, b.Total)
	assert.Equal(t, 1, b.Counts[types.StageProspect])

	p := b.Buckets[types.StageProspect][0]
	if assert.NotNil(t, p.ApplyDeadline) {
		assert.Equal(t, time.Hour, p.ApplyDeadline.Remaining)
	}
	assert.Nil(t, p.FollowUp)

	l := b.Buckets[types.StageLead][0]
	assert.Nil(t, l.ApplyDeadline)
	if assert.NotNil(t, l.FollowUp) {
		assert.True(t, l.FollowUp.Expired)
	}
	assert.True(t, l.FollowUpOverdue)
	assert.Equal(t, 30, l.Progress)
}
