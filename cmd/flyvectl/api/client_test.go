package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"flyvemdm/backend/app/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginKeepsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		var req dto.LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "admin123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(dto.TokenResponse{AccessToken: "tok"})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "")
	_, err := c.Login(context.Background(), "admin", "nope")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "invalid credentials (401)", apiErr.Error())

	tok, err := c.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	require.Equal(t, "tok", tok)
	require.Equal(t, "tok", c.Token)
}

func TestUpdateAgentSendsPartialBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "7", r.URL.Query().Get("id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"lock": true}, body)
		_ = json.NewEncoder(w).Encode(dto.AgentResponse{ID: 7, Lock: true, Warning: "mqtt: broker down"})
	}))
	defer srv.Close()

	lock := true
	a, err := New(srv.URL, "tok").UpdateAgent(context.Background(), 7, dto.AgentUpdateRequest{Lock: &lock})
	require.NoError(t, err)
	require.True(t, a.Lock)
	require.Equal(t, "mqtt: broker down", a.Warning)
}

func TestDeleteAcceptsNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	require.NoError(t, New(srv.URL, "tok").DeleteAgent(context.Background(), 3))
}

func TestQueryTimeoutSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/agents/ping", r.URL.Path)
		w.WriteHeader(http.StatusGatewayTimeout)
		_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Timeout querying the device"})
	}))
	defer srv.Close()

	err := New(srv.URL, "tok").Ping(context.Background(), 1)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusGatewayTimeout, apiErr.Status)
	require.Equal(t, "Timeout querying the device", apiErr.Message)
}
