package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the lifecycle engine and its stores.
var (
	ErrLeadNotFound      = errors.New("lead not found")
	ErrLeadArchived      = errors.New("lead is archived")
	ErrUnknownField      = errors.New("unknown field")
	ErrInvalidFieldValue = errors.New("invalid field value")
	ErrInvalidInput      = errors.New("invalid input")
)

// MaterializationError indicates the durable application record could not be
// created. Dependent operations for the lead are aborted.
type MaterializationError struct {
	LeadID string
	Err    error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("failed to materialize lead %s: %v", e.LeadID, e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}

// SyncError indicates a debounced field patch failed after materialization.
type SyncError struct {
	LeadID string
	Field  Field
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to sync %s for lead %s: %v", e.Field, e.LeadID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// TransitionConflict indicates a requested stage move does not match the
// facts the stage is derived from.
type TransitionConflict struct {
	LeadID string
	From   Stage
	To     Stage
	Reason string
}

func (e *TransitionConflict) Error() string {
	return fmt.Sprintf("cannot move lead %s from %s to %s: %s", e.LeadID, e.From, e.To, e.Reason)
}

// SessionError indicates the credential was missing or expired at call time.
type SessionError struct {
	Reason string
	Err    error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session error: %s: %v", e.Reason, e.Err)
	}
	return "session error: " + e.Reason
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// IsTransitionConflict reports whether err is a *TransitionConflict.
func IsTransitionConflict(err error) bool {
	var tc *TransitionConflict
	return errors.As(err, &tc)
}

// IsSessionError reports whether err is a *SessionError.
func IsSessionError(err error) bool {
	var se *SessionError
	return errors.As(err, &se)
}

// IsMaterializationError reports whether err is a *MaterializationError.
func IsMaterializationError(err error) bool {
	var me *MaterializationError
	return errors.As(err, &me)
}
