package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

// FormValidator validates wizard forms and request bodies, reporting field
// errors under their JSON names.
type FormValidator struct {
	v *validator.Validate
}

// NewFormValidator registers the "dane" tag against the given resolver. A
// nil resolver accepts any 8-digit code.
func NewFormValidator(resolver ports.DaneResolver) *FormValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("dane", func(fl validator.FieldLevel) bool {
		code := fl.Field().String()
		if resolver == nil {
			return len(code) == 8
		}
		return resolver.Known(code)
	})
	return &FormValidator{v: v}
}

// Struct validates s and returns a *domain.ValidationError on failure.
func (fv *FormValidator) Struct(s any) error {
	err := fv.v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &domain.ValidationError{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		path := fieldPath(fe)
		if _, seen := out.Fields[path]; !seen {
			out.Fields[path] = fieldError(path, fe)
		}
	}
	return out
}

// fieldPath drops the root struct name: "ShipmentForm.origin.phone" -> "origin.phone".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "numeric":
		return field + " must contain only digits"
	case "len":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must have length %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must use the format %s", field, fe.Param())
	case "dane":
		return field + " is not a known DANE code"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// fieldErr builds a single-field validation error for checks that tags
// cannot express.
func fieldErr(field, msg string) *domain.ValidationError {
	return &domain.ValidationError{Fields: map[string]string{field: msg}}
}
