package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Artifacts records what the user sent along with an application.
type Artifacts struct {
	CV          bool `json:"sent_cv"`
	Portfolio   bool `json:"sent_portfolio"`
	CoverLetter bool `json:"sent_cover_letter"`
}

// GotTheJobRequest answers the "did you get the job" prompt.
type GotTheJobRequest struct {
	GotTheJob *bool      `json:"got_the_job" validate:"required"`
	StartDate *time.Time `json:"start_date,omitempty"`
}

// FollowUpRequest completes the follow-up for a lead.
type FollowUpRequest struct {
	Message string `json:"message" validate:"required,min=1"`
}

// MoveStageRequest is a drag-and-drop drop onto a stage column.
type MoveStageRequest struct {
	Stage Stage `json:"stage" validate:"required,oneof=prospect lead opportunity deal"`
}

// FieldUpdateRequest is a single inline edit.
type FieldUpdateRequest struct {
	Field Field `json:"field" validate:"required"`
	Value any   `json:"value"`
}

// Validate validates the ClickEvent using the validator.
func (e *ClickEvent) Validate() error {
	validate := validator.New()
	return validate.Struct(e)
}

// Validate validates the InterviewInput using the validator.
func (r *InterviewInput) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the GotTheJobRequest using the validator.
func (r *GotTheJobRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the FollowUpRequest using the validator.
func (r *FollowUpRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the MoveStageRequest using the validator.
func (r *MoveStageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Validate validates the FieldUpdateRequest using the validator.
func (r *FieldUpdateRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
