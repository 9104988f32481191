package apiclient

import (
	"time"

	"github.com/jonathan/lead-tracker/internal/types"
)

// application is the wire form of an application record. Names follow the
// store's columns.
type application struct {
	ID                    string            `json:"id"`
	ClickID               string            `json:"click_id,omitempty"`
	SourceJobID           string            `json:"source_job_id,omitempty"`
	JobTitle              string            `json:"job_title"`
	CompanyName           string            `json:"company_name"`
	URL                   string            `json:"url,omitempty"`
	Applied               bool              `json:"applied"`
	SentCV                bool              `json:"sent_cv"`
	SentPortfolio         bool              `json:"sent_portfolio"`
	SentCoverLetter       bool              `json:"sent_cover_letter"`
	GotTheJob             *bool             `json:"got_the_job"`
	StartDate             *time.Time        `json:"start_date"`
	Interviews            []types.Interview `json:"interviews"`
	Contacts              []types.Contact   `json:"contacts"`
	Notes                 string            `json:"notes"`
	FollowUpMessage       string            `json:"follow_up_message"`
	FollowUpCompletedAt   *time.Time        `json:"follow_up_completed_at"`
	InterviewPrepComplete bool              `json:"interview_prep_complete"`
	IsCollapsed           bool              `json:"is_collapsed"`
	IsArchived            bool              `json:"is_archived"`
	ArchivedAt            *time.Time        `json:"archived_at"`
	CreatedAt             time.Time         `json:"created_at"`
}

func (a application) lead() types.Lead {
	l := types.Lead{
		ID:                    a.ID,
		ClickID:               a.ClickID,
		SourceJobID:           a.SourceJobID,
		Title:                 a.JobTitle,
		Company:               a.CompanyName,
		URL:                   a.URL,
		Applied:               a.Applied,
		SentCV:                a.SentCV,
		SentPortfolio:         a.SentPortfolio,
		SentCoverLetter:       a.SentCoverLetter,
		GotTheJob:             a.GotTheJob,
		StartDate:             a.StartDate,
		Interviews:            a.Interviews,
		Contacts:              a.Contacts,
		Notes:                 a.Notes,
		FollowUpMessage:       a.FollowUpMessage,
		FollowUpCompletedAt:   a.FollowUpCompletedAt,
		InterviewPrepComplete: a.InterviewPrepComplete,
		Collapsed:             a.IsCollapsed,
		IsArchived:            a.IsArchived,
		ArchivedAt:            a.ArchivedAt,
		CreatedAt:             a.CreatedAt,
		IsMaterialized:        true,
	}
	if l.Interviews == nil {
		l.Interviews = []types.Interview{}
	}
	if l.Contacts == nil {
		l.Contacts = []types.Contact{}
	}
	return l
}
