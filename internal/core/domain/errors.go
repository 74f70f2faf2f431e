package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoRates            = errors.New("no rates available")
	ErrInvalidStep        = errors.New("operation not allowed in current wizard step")
	ErrNoRateSelected     = errors.New("no rate selected")
	ErrUnknownRate        = errors.New("rate does not belong to the current quote")
	ErrQuotePending       = errors.New("quote still pending")
	ErrGenerationInFlight = errors.New("guide generation already in progress")
	ErrSessionNotFound    = errors.New("wizard session not found")
	ErrSessionClosed      = errors.New("wizard session closed")
	ErrShipmentNotFound   = errors.New("shipment not found")
	ErrForbidden          = errors.New("access forbidden")
	ErrBalanceUnavailable = errors.New("wallet balance unavailable")
	ErrQuoteFailed        = errors.New("quote failed")
	ErrGuideFailed        = errors.New("guide generation failed")
)

// InsufficientBalanceError blocks guide generation before any call is made.
type InsufficientBalanceError struct {
	Required  float64
	Available float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("saldo insuficiente: se requieren %s y hay disponibles %s (faltan %s)",
		FormatCOP(e.Required), FormatCOP(e.Available), FormatCOP(e.Shortfall()))
}

// Shortfall is how much must be topped up.
func (e *InsufficientBalanceError) Shortfall() float64 {
	return e.Required - e.Available
}

// ValidationError holds per-field messages keyed by the JSON field path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// BackendError is a non-2xx answer from the platform API.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Status == 404
}

// FormatCOP renders an amount in Colombian pesos, e.g. "$12.500".
func FormatCOP(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
