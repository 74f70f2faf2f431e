package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/shipping-central/internal/api/middleware"
	"github.com/99minutos/shipping-central/internal/core/domain"
)

// ctxPrincipal extracts the principal injected by the Auth middleware. Its
// absence means the route was mounted without auth: reject with 401.
func ctxPrincipal(c echo.Context) (domain.Principal, error) {
	p, ok := c.Get(middleware.PrincipalKey).(domain.Principal)
	if !ok || p.Role == "" {
		return domain.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return p, nil
}

// ctxBusiness returns the business resolved by the BusinessScope
// middleware, falling back to the principal's own business.
func ctxBusiness(c echo.Context) (uint, error) {
	if id, ok := c.Get(middleware.BusinessKey).(uint); ok {
		return id, nil
	}
	p, err := ctxPrincipal(c)
	if err != nil {
		return 0, err
	}
	return p.Scope(0)
}

// requireBusiness is ctxBusiness for operations that must target exactly one
// business.
func requireBusiness(c echo.Context) (uint, error) {
	id, err := ctxBusiness(c)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "business_id is required")
	}
	return id, nil
}

// paramUint parses a positive integer path parameter.
func paramUint(c echo.Context, name string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer")
	}
	return uint(n), nil
}
