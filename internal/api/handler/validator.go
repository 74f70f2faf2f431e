package handler

import (
	"github.com/99minutos/shipping-central/internal/core/service"
)

// echoValidator lets Echo call c.Validate(req) with the same rules and
// field names as the wizard forms.
type echoValidator struct {
	v *service.FormValidator
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
func NewValidator(v *service.FormValidator) *echoValidator {
	return &echoValidator{v: v}
}

// Validate satisfies the echo.Validator interface. Failures are
// *domain.ValidationError values.
func (ev *echoValidator) Validate(i any) error {
	return ev.v.Struct(i)
}
