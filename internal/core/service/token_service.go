package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

var ErrInvalidPrincipal = errors.New("invalid principal")

// TokenService signs the bearer tokens the BFF accepts. Production tokens
// come from the platform; this issues them for operators and local runs.
type TokenService struct {
	jwtSecret string
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewTokenService(jwtSecret string, tokenTTL time.Duration) *TokenService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &TokenService{jwtSecret: jwtSecret, tokenTTL: tokenTTL, now: time.Now}
}

// Issue returns an HS256 token carrying the principal's claims.
func (s *TokenService) Issue(p domain.Principal) (string, error) {
	if s.jwtSecret == "" {
		return "", errors.New("issue token: empty secret")
	}
	switch p.Role {
	case domain.RoleAdmin:
	case domain.RoleBusiness:
		if p.BusinessID == 0 {
			return "", ErrInvalidPrincipal
		}
	default:
		return "", ErrInvalidPrincipal
	}

	claims := jwt.MapClaims{
		"username": p.Username,
		"role":     p.Role,
		"exp":      s.now().Add(s.tokenTTL).Unix(),
	}
	if p.BusinessID != 0 {
		claims["business_id"] = p.BusinessID
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}
