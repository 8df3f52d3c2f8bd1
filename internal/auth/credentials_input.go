package auth

import (
	"strings"

	"portfolio-service/internal/auth/credentials"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Credentials is the email/password pair submitted by sign-in and sign-up.
type Credentials struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func (c Credentials) normalized() Credentials {
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// Validate checks the shape of the input only; it does not authenticate.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

// validateNew additionally applies the password policy used at sign-up.
func (c Credentials) validateNew() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password,
			validation.Required,
			validation.Length(credentials.MinPasswordLength, credentials.MaxPasswordLength),
		),
	)
}
