package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/lead-tracker/internal/lifecycle"
	"github.com/jonathan/lead-tracker/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the HTTP status code for an error. Errors it does not
// recognise come from the record store (materialization, archive, patch)
// and are reported as a bad gateway.
func HTTPStatus(err error) int {
	var (
		ve  *ErrValidation
		vae validator.ValidationErrors
		tc  *types.TransitionConflict
		se  *types.SessionError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &ve), errors.As(err, &vae),
		errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrUnknownField),
		errors.Is(err, types.ErrInvalidFieldValue),
		errors.Is(err, types.ErrInterviewDateRequired),
		errors.Is(err, lifecycle.ErrFollowUpMessageRequired):
		return http.StatusBadRequest
	case errors.As(err, &se):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrLeadNotFound),
		errors.Is(err, types.ErrLeadArchived),
		errors.Is(err, lifecycle.ErrContactNotFound):
		return http.StatusNotFound
	case errors.As(err, &tc), errors.Is(err, lifecycle.ErrFollowUpNotApplicable):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}
