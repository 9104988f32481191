package types

import (
	"fmt"
	"time"
)

// Field is an internal name of a lead field the user edits inline.
type Field string

// Inline-editable fields.
const (
	FieldNotes                 Field = "notes"
	FieldFollowUpMessage       Field = "followUpMessage"
	FieldInterviewPrepComplete Field = "interviewPrepComplete"
	FieldStartDate             Field = "startDate"
	FieldTitle                 Field = "title"
	FieldCompany               Field = "company"
)

// NormalizeFieldValue checks that v has the right shape for f and returns it
// in canonical form: string, bool, or *time.Time for dates.
func NormalizeFieldValue(f Field, v any) (any, error) {
	switch f {
	case FieldNotes, FieldFollowUpMessage, FieldTitle, FieldCompany:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidFieldValue, f, v)
		}
		return s, nil
	case FieldInterviewPrepComplete:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects a bool, got %T", ErrInvalidFieldValue, f, v)
		}
		return b, nil
	case FieldStartDate:
		return normalizeDate(v)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
}

func normalizeDate(v any) (*time.Time, error) {
	switch d := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return &d, nil
	case *time.Time:
		return cloneTime(d), nil
	case string:
		if d == "" {
			return nil, nil
		}
		for _, layout := range []string{time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(layout, d); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("%w: cannot parse date %q", ErrInvalidFieldValue, d)
	default:
		return nil, fmt.Errorf("%w: startDate expects a date, got %T", ErrInvalidFieldValue, v)
	}
}

// ApplyField sets a normalized field value on the lead.
func ApplyField(l *Lead, f Field, v any) error {
	nv, err := NormalizeFieldValue(f, v)
	if err != nil {
		return err
	}
	switch f {
	case FieldNotes:
		l.Notes = nv.(string)
	case FieldFollowUpMessage:
		l.FollowUpMessage = nv.(string)
	case FieldTitle:
		l.Title = nv.(string)
	case FieldCompany:
		l.Company = nv.(string)
	case FieldInterviewPrepComplete:
		l.InterviewPrepComplete = nv.(bool)
	case FieldStartDate:
		l.StartDate = nv.(*time.Time)
	}
	return nil
}
