// Package api is a small client for the flyvemdm admin HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flyvemdm/backend/app/dto"
)

// Error is a non-2xx answer of the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		// queries wait on the device for up to 10s server side
		HTTP: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	target := c.BaseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &Error{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func idQuery(id uint) url.Values {
	return url.Values{"id": {fmt.Sprint(id)}}
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var tok dto.TokenResponse
	if err := c.do(ctx, http.MethodPost, "/login", nil, dto.LoginRequest{Username: username, Password: password}, &tok); err != nil {
		return "", err
	}
	c.Token = tok.AccessToken
	return tok.AccessToken, nil
}

func (c *Client) Agents(ctx context.Context) ([]dto.AgentResponse, error) {
	var out []dto.AgentResponse
	return out, c.do(ctx, http.MethodGet, "/admin/agents", nil, nil, &out)
}

func (c *Client) Agent(ctx context.Context, id uint) (*dto.AgentResponse, error) {
	var out dto.AgentResponse
	if err := c.do(ctx, http.MethodGet, "/admin/agents", idQuery(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAgent sends a partial update. A non-empty Warning in the answer means
// the change was saved but some command could not be delivered.
func (c *Client) UpdateAgent(ctx context.Context, id uint, in dto.AgentUpdateRequest) (*dto.AgentResponse, error) {
	var out dto.AgentResponse
	if err := c.do(ctx, http.MethodPut, "/admin/agents", idQuery(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAgent(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, "/admin/agents", idQuery(id), nil, nil)
}

func (c *Client) query(ctx context.Context, name string, id uint, out any) error {
	return c.do(ctx, http.MethodPost, "/admin/agents/"+name, idQuery(id), nil, out)
}

func (c *Client) Ping(ctx context.Context, id uint) error {
	return c.query(ctx, "ping", id, nil)
}

func (c *Client) Reboot(ctx context.Context, id uint) error {
	return c.query(ctx, "reboot", id, nil)
}

func (c *Client) Geolocate(ctx context.Context, id uint) (*dto.GeolocationResponse, error) {
	var out dto.GeolocationResponse
	if err := c.query(ctx, "geolocate", id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Inventory(ctx context.Context, id uint) (*dto.InventoryResponse, error) {
	var out dto.InventoryResponse
	if err := c.query(ctx, "inventory", id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Invite(ctx context.Context, email string, entityID uint) (*dto.InvitationResponse, error) {
	var out dto.InvitationResponse
	if err := c.do(ctx, http.MethodPost, "/admin/invitations", nil, dto.InvitationRequest{Email: email, EntityID: entityID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Fleets(ctx context.Context, entityID uint) ([]dto.FleetResponse, error) {
	var out []dto.FleetResponse
	q := url.Values{"entity_id": {fmt.Sprint(entityID)}}
	return out, c.do(ctx, http.MethodGet, "/admin/fleets", q, nil, &out)
}
