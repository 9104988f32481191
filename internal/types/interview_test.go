package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInterview_AddUpcoming(t *testing.T) {
	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	out, changed, err := ApplyInterview(nil, InterviewInput{Type: InterviewTechnical, Date: day})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out, 1)
	assert.Equal(t, InterviewStatusUpcoming, out[0].Status())
	assert.False(t, out[0].Completed)
}

func TestApplyInterview_UpcomingNeedsDate(t *testing.T) {
	_, _, err := ApplyInterview(nil, InterviewInput{Type: InterviewTechnical})
	assert.ErrorIs(t, err, ErrInterviewDateRequired)
}

func TestApplyInterview_UnknownType(t *testing.T) {
	_, _, err := ApplyInterview(nil, InterviewInput{Type: "panel", Date: time.Now()})
	assert.Error(t, err)
}

func TestApplyInterview_RevisesPendingDate(t *testing.T) {
	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	ivs, _, err := ApplyInterview(nil, InterviewInput{Type: InterviewHR, Date: day})
	require.NoError(t, err)

	out, changed, err := ApplyInterview(ivs, InterviewInput{Type: InterviewHR, Date: day})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, out, 1)

	later := day.Add(48 * time.Hour)
	out, changed, err = ApplyInterview(ivs, InterviewInput{Type: InterviewHR, Date: later})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out, 1)
	assert.True(t, out[0].Date.Equal(later))
	assert.True(t, ivs[0].Date.Equal(day), "input must not be modified")
}

func TestApplyInterview_RatingIsIdempotent(t *testing.T) {
	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	ivs, _, err := ApplyInterview(nil, InterviewInput{Type: InterviewRecruiter, Date: day})
	require.NoError(t, err)

	good := InterviewInput{Type: InterviewRecruiter, Rating: Bool(true)}
	ivs, changed, err := ApplyInterview(ivs, good)
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, ivs, 1)
	assert.Equal(t, InterviewStatusGood, ivs[0].Status())
	assert.True(t, ivs[0].Date.Equal(day))

	again, changed, err := ApplyInterview(ivs, good)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, ivs, again)

	bad, changed, err := ApplyInterview(ivs, InterviewInput{Type: InterviewRecruiter, Rating: Bool(false)})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, bad, 1)
	assert.Equal(t, InterviewStatusBad, bad[0].Status())
}

func TestApplyInterview_RatingWithoutPendingAddsCompleted(t *testing.T) {
	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	out, changed, err := ApplyInterview(nil, InterviewInput{Type: InterviewExecutive, Date: day, Rating: Bool(true)})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out, 1)
	assert.True(t, out[0].Completed)

	// A different date is another round of the same type.
	out, changed, err = ApplyInterview(out, InterviewInput{Type: InterviewExecutive, Date: day.Add(72 * time.Hour), Rating: Bool(true)})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Len(t, out, 2)
}

func TestApplyInterview_OnePendingPerType(t *testing.T) {
	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	var ivs []Interview
	var err error
	for _, in := range []InterviewInput{
		{Type: InterviewHR, Date: day},
		{Type: InterviewTechnical, Date: day.Add(time.Hour)},
		{Type: InterviewHR, Date: day.Add(2 * time.Hour)},
	} {
		ivs, _, err = ApplyInterview(ivs, in)
		require.NoError(t, err)
	}

	pending := map[InterviewType]int{}
	for _, iv := range ivs {
		if !iv.Completed {
			pending[iv.Type]++
		}
	}
	assert.Equal(t, map[InterviewType]int{InterviewHR: 1, InterviewTechnical: 1}, pending)
}

func TestLatestInterview(t *testing.T) {
	assert.Nil(t, LatestInterview(nil))

	day := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	s := LatestInterview([]Interview{
		{Type: InterviewHR, Date: day, Rating: Bool(true), Completed: true},
		{Type: InterviewTechnical, Date: day.Add(time.Hour)},
	})
	require.NotNil(t, s)
	assert.Equal(t, InterviewTechnical, s.Type)
	assert.Equal(t, InterviewStatusUpcoming, s.Status)
}
