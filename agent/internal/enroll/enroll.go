// Package enroll trades an invitation for broker credentials.
package enroll

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"flyvemdm/agent/internal/config"
	"flyvemdm/agent/internal/db"
	"flyvemdm/agent/internal/device"
	"flyvemdm/backend/app/dto"
	"flyvemdm/backend/app/services"
)

// Enroll posts the enrollment request and returns the credentials to keep.
func Enroll(ctx context.Context, hc *http.Client, cfg config.AppConfig, info device.Info) (*db.Credentials, error) {
	if cfg.InvitationToken == "" || cfg.Email == "" {
		return nil, fmt.Errorf("not enrolled yet: agent.invitation_token and agent.email are required")
	}
	inventory, err := info.EncodedInventory()
	if err != nil {
		return nil, err
	}
	hasPermission := true
	body, err := json.Marshal(services.EnrollRequest{
		InvitationToken:     cfg.InvitationToken,
		Email:               cfg.Email,
		Version:             cfg.Version,
		MdmType:             cfg.MdmType,
		NotificationType:    "mqtt",
		Inventory:           inventory,
		HasSystemPermission: &hasPermission,
	})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(cfg.BackendURL, "/") + "/enroll"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		var e dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("enrollment refused (%d): %s", resp.StatusCode, e.Error)
	}
	var out dto.EnrollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode enrollment: %w", err)
	}
	return &db.Credentials{
		APIToken:     out.APIToken,
		Topic:        out.Topic,
		MqttUser:     out.MqttUser,
		MqttPassword: out.MqttPassword,
		Broker:       out.Broker,
		Port:         out.Port,
		TLSPort:      out.TLSPort,
		TLS:          out.TLS,
	}, nil
}

// BrokerURL is where the agent connects: the configured override, else the
// address handed out at enrollment.
func BrokerURL(cfg config.AppConfig, c *db.Credentials) string {
	if cfg.Broker != "" {
		return cfg.Broker
	}
	if c.TLS && c.TLSPort > 0 {
		return fmt.Sprintf("ssl://%s:%d", c.Broker, c.TLSPort)
	}
	return fmt.Sprintf("tcp://%s:%d", c.Broker, c.Port)
}
