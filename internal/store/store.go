// Package store defines the record store contract the lifecycle engine
// persists through, plus an in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jonathan/lead-tracker/internal/types"
)

// ErrUnavailable is returned when no record store is configured.
var ErrUnavailable = errors.New("record store unavailable")

// ErrApplicationNotFound is returned when an application id is unknown.
var ErrApplicationNotFound = errors.New("application not found")

// External field names used in Fields. These follow the store's naming and
// are distinct from types.Field.
const (
	ColApplied               = "applied"
	ColSentCV                = "sent_cv"
	ColSentPortfolio         = "sent_portfolio"
	ColSentCoverLetter       = "sent_cover_letter"
	ColGotTheJob             = "got_the_job"
	ColStartDate             = "start_date"
	ColInterviews            = "interviews"
	ColContacts              = "contacts"
	ColNotes                 = "notes"
	ColFollowUpMessage       = "follow_up_message"
	ColFollowUpCompletedAt   = "follow_up_completed_at"
	ColInterviewPrepComplete = "interview_prep_complete"
	ColCollapsed             = "is_collapsed"
	ColJobTitle              = "job_title"
	ColCompanyName           = "company_name"
)

// Fields is a partial field set keyed by external field name.
type Fields map[string]any

// CreateApplicationInput is the payload for creating a durable application
// from a click.
type CreateApplicationInput struct {
	SourceID        string `json:"source_id"`
	SourceJobID     string `json:"source_job_id,omitempty"`
	Title           string `json:"job_title,omitempty"`
	Company         string `json:"company_name,omitempty"`
	URL             string `json:"url,omitempty"`
	Applied         bool   `json:"applied"`
	SentCV          bool   `json:"sent_cv"`
	SentPortfolio   bool   `json:"sent_portfolio"`
	SentCoverLetter bool   `json:"sent_cover_letter"`

	// Inline edits made before the record existed travel with the create so
	// the refresh that follows materialization does not lose them.
	Notes                 string     `json:"notes,omitempty"`
	FollowUpMessage       string     `json:"follow_up_message,omitempty"`
	InterviewPrepComplete bool       `json:"interview_prep_complete"`
	StartDate             *time.Time `json:"start_date,omitempty"`
	Collapsed             bool       `json:"is_collapsed"`

	CreatedAt time.Time `json:"created_at"`
}

// CreateInputFromLead builds the create payload from a lead snapshot.
func CreateInputFromLead(l types.Lead) CreateApplicationInput {
	return CreateApplicationInput{
		SourceID:              l.Key(),
		SourceJobID:           l.SourceJobID,
		Title:                 l.Title,
		Company:               l.Company,
		URL:                   l.URL,
		Applied:               l.Applied,
		SentCV:                l.SentCV,
		SentPortfolio:         l.SentPortfolio,
		SentCoverLetter:       l.SentCoverLetter,
		Notes:                 l.Notes,
		FollowUpMessage:       l.FollowUpMessage,
		InterviewPrepComplete: l.InterviewPrepComplete,
		StartDate:             l.StartDate,
		Collapsed:             l.Collapsed,
		CreatedAt:             l.CreatedAt,
	}
}

// RecordStore persists applications.
type RecordStore interface {
	CreateApplication(ctx context.Context, in CreateApplicationInput) (string, error)
	UpdateApplication(ctx context.Context, applyingID string, fields Fields) error
	ArchiveApplication(ctx context.Context, applyingID string) error
}

// Loader lists the active leads: materialized applications plus clicks that
// have not been materialized yet.
type Loader interface {
	ListLeads(ctx context.Context) ([]types.Lead, error)
}

// Backend is a store that can both persist and load.
type Backend interface {
	RecordStore
	Loader
}
