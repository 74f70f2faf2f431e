package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. Fields
// and the balance amounts are only set for the errors that carry them.
type errorResponse struct {
	Error     string            `json:"error"`
	Fields    map[string]string `json:"fields,omitempty"`
	Required  *float64          `json:"required,omitempty"`
	Available *float64          `json:"available,omitempty"`
	Shortfall *float64          `json:"shortfall,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, resp := resolveError(err, log, c)
		_ = c.JSON(code, resp)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, errorResponse{Error: ve.Error(), Fields: ve.Fields}
	}

	var ib *domain.InsufficientBalanceError
	if errors.As(err, &ib) {
		shortfall := ib.Shortfall()
		return http.StatusPaymentRequired, errorResponse{
			Error:     ib.Error(),
			Required:  &ib.Required,
			Available: &ib.Available,
			Shortfall: &shortfall,
		}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrNoRates):
		return http.StatusUnprocessableEntity, errorResponse{Error: domain.ErrNoRates.Error()}
	case errors.Is(err, domain.ErrUnknownRate), errors.Is(err, domain.ErrNoRateSelected):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrInvalidStep),
		errors.Is(err, domain.ErrQuotePending),
		errors.Is(err, domain.ErrGenerationInFlight),
		errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, errorResponse{Error: "wizard session not found"}
	case errors.Is(err, domain.ErrShipmentNotFound):
		return http.StatusNotFound, errorResponse{Error: "shipment not found"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "access forbidden"}
	case errors.Is(err, domain.ErrBalanceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: err.Error()}
	}

	var be *domain.BackendError
	if errors.As(err, &be) {
		if be.Status >= 400 && be.Status < 500 {
			return be.Status, errorResponse{Error: be.Message}
		}
		log.Warn().Err(err).Str("path", c.Path()).Msg("backend failure")
		return http.StatusBadGateway, errorResponse{Error: be.Message}
	}
	if errors.Is(err, domain.ErrQuoteFailed) || errors.Is(err, domain.ErrGuideFailed) {
		return http.StatusBadGateway, errorResponse{Error: err.Error()}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
