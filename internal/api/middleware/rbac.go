package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

// BusinessKey is the echo context key holding the business a request acts on.
const BusinessKey = "business_id"

// RBAC enforces role-based access control.
func RBAC(allowedRoles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, _ := c.Get(PrincipalKey).(domain.Principal)
			if _, ok := allowed[p.Role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// BusinessScope resolves the business a request acts on from ?business_id=
// and the caller's principal. Business users may only name their own.
func BusinessScope() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := c.Get(PrincipalKey).(domain.Principal)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}

			var requested uint
			if raw := c.QueryParam("business_id"); raw != "" {
				n, err := strconv.ParseUint(raw, 10, 64)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "business_id must be a positive integer")
				}
				requested = uint(n)
			}

			scope, err := p.Scope(requested)
			if err != nil {
				return err
			}
			c.Set(BusinessKey, scope)
			return next(c)
		}
	}
}
