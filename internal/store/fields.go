package store

import (
	"fmt"
	"time"

	"github.com/jonathan/lead-tracker/internal/types"
)

// ApplyFields writes a partial field set onto a lead.
func ApplyFields(l *types.Lead, fields Fields) error {
	for col, v := range fields {
		if err := applyField(l, col, v); err != nil {
			return fmt.Errorf("failed to apply %s: %w", col, err)
		}
	}
	return nil
}

func applyField(l *types.Lead, col string, v any) error {
	switch col {
	case ColApplied:
		return setBool(&l.Applied, v)
	case ColSentCV:
		return setBool(&l.SentCV, v)
	case ColSentPortfolio:
		return setBool(&l.SentPortfolio, v)
	case ColSentCoverLetter:
		return setBool(&l.SentCoverLetter, v)
	case ColInterviewPrepComplete:
		return setBool(&l.InterviewPrepComplete, v)
	case ColCollapsed:
		return setBool(&l.Collapsed, v)
	case ColNotes:
		return setString(&l.Notes, v)
	case ColFollowUpMessage:
		return setString(&l.FollowUpMessage, v)
	case ColJobTitle:
		return setString(&l.Title, v)
	case ColCompanyName:
		return setString(&l.Company, v)
	case ColGotTheJob:
		switch b := v.(type) {
		case nil:
			l.GotTheJob = nil
		case bool:
			l.GotTheJob = types.Bool(b)
		case *bool:
			if b == nil {
				l.GotTheJob = nil
			} else {
				l.GotTheJob = types.Bool(*b)
			}
		default:
			return fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
		}
	case ColStartDate:
		return setTime(&l.StartDate, v)
	case ColFollowUpCompletedAt:
		return setTime(&l.FollowUpCompletedAt, v)
	case ColInterviews:
		ivs, ok := v.([]types.Interview)
		if !ok {
			return fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
		}
		l.Interviews = append([]types.Interview(nil), ivs...)
	case ColContacts:
		cs, ok := v.([]types.Contact)
		if !ok {
			return fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
		}
		l.Contacts = append([]types.Contact(nil), cs...)
	default:
		return fmt.Errorf("%w: %s", types.ErrUnknownField, col)
	}
	return nil
}

func setBool(dst *bool, v any) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
	}
	*dst = b
	return nil
}

func setString(dst *string, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
	}
	*dst = s
	return nil
}

func setTime(dst **time.Time, v any) error {
	switch t := v.(type) {
	case nil:
		*dst = nil
	case time.Time:
		*dst = &t
	case *time.Time:
		if t == nil {
			*dst = nil
			return nil
		}
		c := *t
		*dst = &c
	default:
		return fmt.Errorf("%w: got %T", types.ErrInvalidFieldValue, v)
	}
	return nil
}
