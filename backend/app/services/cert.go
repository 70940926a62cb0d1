package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CertSigner signs the certificate request of a device.
type CertSigner interface {
	Sign(ctx context.Context, csr string) (string, error)
}

// HTTPCertSigner posts the request to a signing service answering
// {"crt": "..."} or {"message": "..."}.
type HTTPCertSigner struct {
	URL    string
	Client *http.Client
}

func NewHTTPCertSigner(url string) *HTTPCertSigner {
	return &HTTPCertSigner{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPCertSigner) Sign(ctx context.Context, csr string) (string, error) {
	body, err := json.Marshal(map[string]string{"csr": csr})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Crt     string `json:"crt"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode signer answer: %w", err)
	}
	if resp.StatusCode != http.StatusOK || out.Crt == "" {
		return "", fmt.Errorf("signer refused (%d): %s", resp.StatusCode, out.Message)
	}
	return out.Crt, nil
}
