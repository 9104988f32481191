package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/lead-tracker/internal/store"
	"github.com/jonathan/lead-tracker/internal/types"
)

func TestBuildUpdate(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	query, args, err := buildUpdate(store.Fields{
		store.ColNotes:     "hello",
		store.ColApplied:   true,
		store.ColStartDate: &start,
	})
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE applications SET applied = $1, notes = $2, start_date = $3, updated_at = NOW() WHERE id = $4 AND user_id = $5",
		query)
	assert.Equal(t, []any{true, "hello", &start}, args)
}

func TestBuildUpdate_RejectsUnknownColumns(t *testing.T) {
	_, _, err := buildUpdate(store.Fields{"user_id": uuid.New()})
	assert.ErrorIs(t, err, types.ErrUnknownField)

	_, _, err = buildUpdate(store.Fields{"notes = 'x'; --": "x"})
	assert.ErrorIs(t, err, types.ErrUnknownField)

	_, _, err = buildUpdate(store.Fields{})
	assert.Error(t, err)
}

func TestBuildUpdate_EncodesJSONColumns(t *testing.T) {
	contact := types.Contact{ID: uuid.New(), Name: "Kim"}
	_, args, err := buildUpdate(store.Fields{
		store.ColContacts:   []types.Contact{contact},
		store.ColInterviews: []types.Interview(nil),
	})
	require.NoError(t, err)
	require.Len(t, args, 2)

	// contacts sorts before interviews.
	var contacts []types.Contact
	require.NoError(t, json.Unmarshal(args[0].([]byte), &contacts))
	assert.Equal(t, []types.Contact{contact}, contacts)
	assert.JSONEq(t, "[]", string(args[1].([]byte)))

	_, _, err = buildUpdate(store.Fields{store.ColContacts: "Kim"})
	assert.ErrorIs(t, err, types.ErrInvalidFieldValue)
}

func TestDecodeJSONList(t *testing.T) {
	var ivs []types.Interview
	require.NoError(t, decodeJSONList(nil, &ivs))
	assert.NotNil(t, ivs)
	assert.Empty(t, ivs)

	require.NoError(t, decodeJSONList([]byte("null"), &ivs))
	assert.NotNil(t, ivs)

	require.NoError(t, decodeJSONList([]byte(`[{"type":"hr","completed":true,"rating":true}]`), &ivs))
	require.Len(t, ivs, 1)
	assert.Equal(t, types.InterviewStatusGood, ivs[0].Status())

	assert.Error(t, decodeJSONList([]byte("{"), &ivs))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_init.sql", entries[0].Name())
}
