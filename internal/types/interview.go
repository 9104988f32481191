package types

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// InterviewType is the kind of interview round.
type InterviewType string

// Interview types.
const (
	InterviewRecruiter     InterviewType = "recruiter"
	InterviewTechnical     InterviewType = "technical"
	InterviewHiringManager InterviewType = "hiring_manager"
	InterviewTeamLead      InterviewType = "team_lead"
	InterviewHR            InterviewType = "hr"
	InterviewExecutive     InterviewType = "executive"
)

// InterviewTypes lists the supported interview kinds.
var InterviewTypes = []InterviewType{
	InterviewRecruiter,
	InterviewTechnical,
	InterviewHiringManager,
	InterviewTeamLead,
	InterviewHR,
	InterviewExecutive,
}

// ErrInterviewDateRequired is returned when an upcoming interview has no date.
var ErrInterviewDateRequired = errors.New("an upcoming interview needs a date")

// Interview is a single interview round.
type Interview struct {
	ID        uuid.UUID     `json:"id"`
	Type      InterviewType `json:"type"`
	Date      time.Time     `json:"date"`
	Rating    *bool         `json:"rating"` // nil while undecided/upcoming
	Completed bool          `json:"completed"`
}

// InterviewInput is an add-or-rate request coming from the user.
type InterviewInput struct {
	Type   InterviewType `json:"type" validate:"required"`
	Date   time.Time     `json:"date"`
	Rating *bool         `json:"rating"`
}

// InterviewSummary describes the most recent interview for a lead card.
type InterviewSummary struct {
	Type   InterviewType `json:"type"`
	Date   time.Time     `json:"date"`
	Status string        `json:"status"` // upcoming, good, bad
}

// Interview status labels.
const (
	InterviewStatusUpcoming = "upcoming"
	InterviewStatusGood     = "good"
	InterviewStatusBad      = "bad"
)

// ParseInterviewType parses an interview type name.
func ParseInterviewType(s string) (InterviewType, error) {
	for _, t := range InterviewTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown interview type %q", ErrInvalidInput, s)
}

// Status returns the display status of the interview.
func (iv Interview) Status() string {
	switch {
	case !iv.Completed || iv.Rating == nil:
		return InterviewStatusUpcoming
	case *iv.Rating:
		return InterviewStatusGood
	default:
		return InterviewStatusBad
	}
}

func (iv Interview) clone() Interview {
	c := iv
	c.Rating = cloneBool(iv.Rating)
	return c
}

// ApplyInterview folds an add-or-rate request into the interview list and
// returns the new list. The input slice is never modified. changed is false
// when the request had no effect.
//
// At most one incomplete interview per type exists at a time: rating a type
// completes its pending interview, and adding an upcoming interview for a type
// that already has one revises that interview's date.
func ApplyInterview(ivs []Interview, in InterviewInput) (out []Interview, changed bool, err error) {
	if _, err := ParseInterviewType(string(in.Type)); err != nil {
		return nil, false, err
	}

	out = make([]Interview, len(ivs))
	for i, iv := range ivs {
		out[i] = iv.clone()
	}

	pending := slices.IndexFunc(out, func(iv Interview) bool {
		return iv.Type == in.Type && !iv.Completed
	})

	if in.Rating == nil {
		if in.Date.IsZero() {
			return nil, false, ErrInterviewDateRequired
		}
		if pending >= 0 {
			if out[pending].Date.Equal(in.Date) {
				return out, false, nil
			}
			out[pending].Date = in.Date
			return out, true, nil
		}
		return append(out, Interview{
			ID:   uuid.New(),
			Type: in.Type,
			Date: in.Date,
		}), true, nil
	}

	rating := *in.Rating
	if pending >= 0 {
		out[pending].Rating = Bool(rating)
		out[pending].Completed = true
		if !in.Date.IsZero() {
			out[pending].Date = in.Date
		}
		return out, true, nil
	}

	last := -1
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Type == in.Type && out[i].Completed {
			last = i
			break
		}
	}
	if last >= 0 && (in.Date.IsZero() || out[last].Date.Equal(in.Date)) {
		if out[last].Rating != nil && *out[last].Rating == rating {
			return out, false, nil
		}
		out[last].Rating = Bool(rating)
		return out, true, nil
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now()
	}
	return append(out, Interview{
		ID:        uuid.New(),
		Type:      in.Type,
		Date:      date,
		Rating:    Bool(rating),
		Completed: true,
	}), true, nil
}

// LatestInterview summarizes the most recently added interview, or nil.
func LatestInterview(ivs []Interview) *InterviewSummary {
	if len(ivs) == 0 {
		return nil
	}
	iv := ivs[len(ivs)-1]
	return &InterviewSummary{Type: iv.Type, Date: iv.Date, Status: iv.Status()}
}
