package middleware

import (
	"context"
	"net/http"
	"strings"

	jwtutil "flyvemdm/backend/app/jwt"
	"flyvemdm/backend/app/models"
)

type ctxKey int

const (
	ClaimsKey ctxKey = iota + 1
	RequestIDKey
)

type Auth struct{ Signer *jwtutil.Signer }

func (a *Auth) claims(r *http.Request) (*jwtutil.Claims, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, false
	}
	claims, err := a.Signer.Parse(strings.TrimPrefix(authz, "Bearer "))
	if err != nil {
		return nil, false
	}
	return claims, true
}

// RequireAuth accepts any valid bearer token.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return a.RequireRole(next)
}

// RequireRole rejects tokens whose role is not listed. No roles means any role.
func (a *Auth) RequireRole(next http.Handler, roles ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := a.claims(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireRole(next, models.RoleAdmin)
}

func (a *Auth) RequireAgent(next http.Handler) http.Handler {
	return a.RequireRole(next, models.RoleAgent)
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
