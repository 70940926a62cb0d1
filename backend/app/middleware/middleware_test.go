package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	jwtutil "flyvemdm/backend/app/jwt"
	"flyvemdm/backend/app/models"

	"github.com/stretchr/testify/require"
)

func TestRequireRole(t *testing.T) {
	signer := &jwtutil.Signer{Secret: []byte("k"), Issuer: "test", ExpMin: 5}
	auth := &Auth{Signer: signer}
	var seen *jwtutil.Claims
	h := auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetClaims(r.Context())
	}))

	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/agents", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, call(""))
	require.Equal(t, http.StatusUnauthorized, call("garbage"))

	agentToken, err := signer.Sign(3, "flyvemdm-x", models.RoleAgent)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, call(agentToken))

	adminToken, err := signer.Sign(1, "admin", models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, call(adminToken))
	require.NotNil(t, seen)
	require.Equal(t, uint(1), seen.UserID)
}

func TestLoggingSetsRequestID(t *testing.T) {
	var id string
	h := Logging(WithRoute("/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
	require.NotEmpty(t, id)
	require.Equal(t, id, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", id)
}
