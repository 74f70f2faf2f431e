package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/infrastructure/backend"
)

// PrincipalKey is the echo context key holding the domain.Principal.
const PrincipalKey = "principal"

// Auth validates the JWT, injects the caller's principal into the context
// and forwards the raw token to backend calls made with the request context.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c)
			if err != nil {
				return err
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			p := domain.Principal{}
			p.Username, _ = claims["username"].(string)
			p.Role, _ = claims["role"].(string)
			if p.Role == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing role")
			}
			p.BusinessID, err = claimUint(claims["business_id"])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid business_id claim")
			}
			if p.Role == domain.RoleBusiness && p.BusinessID == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "token missing business identity")
			}

			c.Set(PrincipalKey, p)
			c.Set("role", p.Role)
			req := c.Request()
			c.SetRequest(req.WithContext(backend.WithBearer(req.Context(), raw)))

			return next(c)
		}
	}
}

// bearerToken reads the Authorization header. Browsers' EventSource cannot
// set headers, so GET requests may pass the token as ?access_token=.
func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		if tok := c.QueryParam("access_token"); tok != "" && c.Request().Method == http.MethodGet {
			return tok, nil
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}
	return parts[1], nil
}

func claimUint(v any) (uint, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		if n < 0 || n != float64(uint(n)) {
			return 0, fmt.Errorf("invalid number %v", n)
		}
		return uint(n), nil
	case string:
		if n == "" {
			return 0, nil
		}
		u, err := strconv.ParseUint(n, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(u), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
