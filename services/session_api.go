// Package services - session-creation API client.
// File: services/session_api.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"iron-verdict/logger"
)

// SessionAPI talks to the server's request/response surface. The only
// call the client core needs is session creation; everything else flows
// over the message channel.
type SessionAPI struct {
	// BaseURL is the server root, e.g. http://localhost:8080.
	BaseURL string

	// HTTPClient overrides the default client (tests, timeouts).
	HTTPClient *http.Client
}

type createSessionRequest struct {
	Name string `json:"name"`
}

type createSessionResponse struct {
	SessionCode string `json:"session_code"`
}

// CreateSession creates a new scoring session and returns its code.
func (a *SessionAPI) CreateSession(ctx context.Context, name string) (string, error) {
	body, err := json.Marshal(createSessionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("encode session request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.BaseURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create session: unexpected status %d", resp.StatusCode)
	}

	var decoded createSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode session response: %w", err)
	}
	if decoded.SessionCode == "" {
		return "", fmt.Errorf("create session: empty session code")
	}

	logger.Info.Printf("[api] created session %s (%q)", decoded.SessionCode, name)
	return decoded.SessionCode, nil
}

func (a *SessionAPI) client() *http.Client {
	if a.HTTPClient != nil {
		return a.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
