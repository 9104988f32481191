package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Contact is a person linked to a lead (recruiter, referral, hiring manager).
type Contact struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name" validate:"required,min=1"`
	Email string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone string    `json:"phone,omitempty" validate:"omitempty,max=32"`
}

// Validate validates the contact using the validator.
func (c *Contact) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
