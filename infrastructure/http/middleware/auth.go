package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/syncora/syncora/infrastructure/http/response"
)

// AuthMiddleware guards mutating monitor endpoints with a bearer JWT. When
// disabled it passes every request through, for development setups.
type AuthMiddleware struct {
	secret  []byte
	enabled bool
}

func NewAuthMiddleware(secret string, enabled bool) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret), enabled: enabled}
}

func (m *AuthMiddleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "Authorization header required")
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(w, "Invalid authorization header format")
			return
		}

		if err := m.validate(parts[1]); err != nil {
			response.Unauthorized(w, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (m *AuthMiddleware) validate(token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("invalid token")
	}
	return nil
}
