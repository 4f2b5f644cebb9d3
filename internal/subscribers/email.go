package subscribers

import (
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/soumil-kumar17/MailMaven/pkg/errors"
)

var validate = validator.New()

// Email is an address that passed validation. Construct it with ParseEmail.
type Email struct {
	value string
}

// ParseEmail trims and validates a raw address.
func ParseEmail(raw string) (Email, error) {
	trimmed := strings.TrimSpace(raw)
	if err := validate.Var(trimmed, "required,email"); err != nil {
		return Email{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscriber email").
			WithDetails(map[string]any{"email": raw})
	}
	return Email{value: trimmed}, nil
}

// String returns the address.
func (e Email) String() string {
	return e.value
}
