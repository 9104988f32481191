// Package types provides the lead, interview and contact model shared by the
// lifecycle engine, its stores and the HTTP layer.
package types

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClickIDPrefix marks identities that only refer to a click event.
const ClickIDPrefix = "click-"

// Lead is one job in the user's application pipeline.
//
// The stage a lead sits in is never stored; call Stage to derive it.
type Lead struct {
	// ID is the current identity: a click id until the lead is materialized,
	// then the durable application id.
	ID string `json:"id"`
	// ClickID is the click the lead originated from. Empty for leads that were
	// loaded already materialized without a click.
	ClickID     string `json:"click_id,omitempty"`
	SourceJobID string `json:"source_job_id,omitempty"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	URL         string `json:"url,omitempty"`

	Applied         bool       `json:"applied"`
	SentCV          bool       `json:"sent_cv"`
	SentPortfolio   bool       `json:"sent_portfolio"`
	SentCoverLetter bool       `json:"sent_cover_letter"`
	GotTheJob       *bool      `json:"got_the_job"`
	StartDate       *time.Time `json:"start_date,omitempty"`

	Interviews []Interview `json:"interviews"`
	Contacts   []Contact   `json:"contacts"`

	Notes                 string `json:"notes"`
	FollowUpMessage       string `json:"follow_up_message,omitempty"`
	InterviewPrepComplete bool   `json:"interview_prep_complete"`
	Collapsed             bool   `json:"collapsed"`

	CreatedAt           time.Time  `json:"created_at"`
	FollowUpCompletedAt *time.Time `json:"follow_up_completed_at,omitempty"`
	ArchivedAt          *time.Time `json:"archived_at,omitempty"`
	IsArchived          bool       `json:"is_archived"`
	IsMaterialized      bool       `json:"is_materialized"`
}

// ClickEvent is a job click reported by the click source. It seeds an
// unmaterialized lead.
type ClickEvent struct {
	ClickID     string    `json:"click_id"`
	SourceJobID string    `json:"source_job_id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Company     string    `json:"company" validate:"required"`
	URL         string    `json:"url,omitempty" validate:"omitempty,url"`
	ClickedAt   time.Time `json:"clicked_at"`
}

// NewClickID returns a fresh click identity.
func NewClickID() string {
	return ClickIDPrefix + uuid.NewString()
}

// IsClickID reports whether id refers to a click rather than an application.
func IsClickID(id string) bool {
	return strings.HasPrefix(id, ClickIDPrefix)
}

// LeadFromClick builds the unmaterialized lead for a click event.
func LeadFromClick(evt ClickEvent) Lead {
	id := evt.ClickID
	if id == "" {
		id = NewClickID()
	}
	createdAt := evt.ClickedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return Lead{
		ID:          id,
		ClickID:     id,
		SourceJobID: evt.SourceJobID,
		Title:       evt.Title,
		Company:     evt.Company,
		URL:         evt.URL,
		CreatedAt:   createdAt,
	}
}

// Key returns the identity that survives materialization.
func (l Lead) Key() string {
	if l.ClickID != "" {
		return l.ClickID
	}
	return l.ID
}

// Stage derives the lead's stage from its facts.
func (l Lead) Stage() Stage {
	return DeriveStage(l.Applied, l.GotTheJob, len(l.Interviews) > 0)
}

// HasJob reports whether the user got the job.
func (l Lead) HasJob() bool {
	return l.GotTheJob != nil && *l.GotTheJob
}

// FollowUpCompleted reports whether the follow-up was sent.
func (l Lead) FollowUpCompleted() bool {
	return l.FollowUpCompletedAt != nil
}

// Clone returns a deep copy so callers can never mutate shared state.
func (l Lead) Clone() Lead {
	c := l
	c.Interviews = make([]Interview, len(l.Interviews))
	for i, iv := range l.Interviews {
		c.Interviews[i] = iv.clone()
	}
	c.Contacts = slices.Clone(l.Contacts)
	if c.Contacts == nil {
		c.Contacts = []Contact{}
	}
	c.GotTheJob = cloneBool(l.GotTheJob)
	c.StartDate = cloneTime(l.StartDate)
	c.FollowUpCompletedAt = cloneTime(l.FollowUpCompletedAt)
	c.ArchivedAt = cloneTime(l.ArchivedAt)
	return c
}

// FindContact returns the index of the contact with id, or -1.
func (l Lead) FindContact(id uuid.UUID) int {
	return slices.IndexFunc(l.Contacts, func(c Contact) bool { return c.ID == id })
}

// Progress returns the completion percentage shown on the lead card.
// Getting the job always reads 100.
func (l Lead) Progress() int {
	if l.HasJob() {
		return 100
	}
	p := 0
	if l.Applied {
		p += 30
	}
	if strings.TrimSpace(l.Notes) != "" {
		p += 10
	}
	if l.FollowUpCompleted() {
		p += 10
	}
	if len(l.Contacts) > 0 {
		p += 10
	}
	if len(l.Interviews) > 0 {
		p += 20
	}
	if l.InterviewPrepComplete {
		p += 10
	}
	return min(p, 100)
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
