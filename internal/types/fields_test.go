package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFieldValue(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		field   Field
		value   any
		want    any
		wantErr error
	}{
		{name: "notes", field: FieldNotes, value: "hello", want: "hello"},
		{name: "notes wrong type", field: FieldNotes, value: 3, wantErr: ErrInvalidFieldValue},
		{name: "prep", field: FieldInterviewPrepComplete, value: true, want: true},
		{name: "prep wrong type", field: FieldInterviewPrepComplete, value: "true", wantErr: ErrInvalidFieldValue},
		{name: "date only", field: FieldStartDate, value: "2025-06-01", want: &day},
		{name: "rfc3339", field: FieldStartDate, value: "2025-06-01T00:00:00Z", want: &day},
		{name: "bad date", field: FieldStartDate, value: "June 1st", wantErr: ErrInvalidFieldValue},
		{name: "unknown", field: "salary", value: 1, wantErr: ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFieldValue(tt.field, tt.value)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			if want, ok := tt.want.(*time.Time); ok {
				gotTime, ok := got.(*time.Time)
				require.True(t, ok)
				assert.True(t, want.Equal(*gotTime))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeFieldValue_ClearDate(t *testing.T) {
	got, err := NormalizeFieldValue(FieldStartDate, "")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApplyField(t *testing.T) {
	var l Lead
	require.NoError(t, ApplyField(&l, FieldTitle, "Staff Engineer"))
	require.NoError(t, ApplyField(&l, FieldCompany, "Acme"))
	require.NoError(t, ApplyField(&l, FieldFollowUpMessage, "ping"))
	require.NoError(t, ApplyField(&l, FieldInterviewPrepComplete, true))
	require.NoError(t, ApplyField(&l, FieldStartDate, "2025-06-01"))

	assert.Equal(t, "Staff Engineer", l.Title)
	assert.Equal(t, "Acme", l.Company)
	assert.Equal(t, "ping", l.FollowUpMessage)
	assert.True(t, l.InterviewPrepComplete)
	require.NotNil(t, l.StartDate)
	assert.Equal(t, 2025, l.StartDate.Year())

	assert.Error(t, ApplyField(&l, FieldNotes, 42))
}
