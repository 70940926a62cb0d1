package enroll

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"flyvemdm/agent/internal/config"
	"flyvemdm/agent/internal/db"
	"flyvemdm/agent/internal/device"
	"flyvemdm/backend/app/dto"
	"flyvemdm/backend/app/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req services.EnrollRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "inv-1", req.InvitationToken)
		assert.Equal(t, "mqtt", req.NotificationType)
		assert.NotEmpty(t, req.Inventory)
		if req.Email != "owner@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Enrollment failed"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(dto.EnrollResponse{
			APIToken: "api", Topic: "12/agent/SN1", MqttUser: "SN1", MqttPassword: "pw", Broker: "broker.example.com", Port: 1883,
		})
	}))
	defer srv.Close()

	cfg := config.AppConfig{BackendURL: srv.URL, InvitationToken: "inv-1", Email: "owner@example.com", MdmType: "android", Version: "2.1.0"}
	creds, err := Enroll(context.Background(), srv.Client(), cfg, device.Info{Serial: "SN1"})
	require.NoError(t, err)
	require.Equal(t, "12/agent/SN1", creds.Topic)
	require.Equal(t, "tcp://broker.example.com:1883", BrokerURL(cfg, creds))

	cfg.Email = "someone@example.com"
	_, err = Enroll(context.Background(), srv.Client(), cfg, device.Info{Serial: "SN1"})
	require.EqualError(t, err, "enrollment refused (400): Enrollment failed")
}

func TestBrokerURL(t *testing.T) {
	c := &db.Credentials{Broker: "b", Port: 1883, TLSPort: 8883, TLS: true}
	require.Equal(t, "ssl://b:8883", BrokerURL(config.AppConfig{}, c))
	require.Equal(t, "tcp://localhost:1883", BrokerURL(config.AppConfig{Broker: "tcp://localhost:1883"}, c))
}
