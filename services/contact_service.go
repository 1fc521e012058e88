// Package services - third-party contact form submission.
// File: services/contact_service.go
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

// defaultContactEndpoint is the hosted form relay the product uses.
const defaultContactEndpoint = "https://api.web3forms.com/submit"

// ContactService submits the contact form to the third-party form
// relay. The outcome is success or error only; the relay handles
// delivery.
type ContactService struct {
	// Endpoint overrides the form relay URL (tests).
	Endpoint string

	// AccessKey identifies the form with the relay.
	AccessKey string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

type contactSubmission struct {
	AccessKey string `json:"access_key"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Message   string `json:"message"`
}

type contactResponse struct {
	Success bool `json:"success"`
}

// Submit posts the form. A non-success relay response is returned as an
// error; the caller only distinguishes success from failure.
func (c *ContactService) Submit(ctx context.Context, name, email, message string) error {
	body, err := json.Marshal(contactSubmission{
		AccessKey: c.AccessKey,
		Name:      name,
		Email:     email,
		Message:   message,
	})
	if err != nil {
		return fmt.Errorf("encode contact form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build contact request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("submit contact form: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var decoded contactResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode contact response: %w", err)
	}
	if !decoded.Success {
		return fmt.Errorf("contact form rejected by relay")
	}

	logger.Info.Printf("[contact] form submitted for %s", email)
	return nil
}

func (c *ContactService) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return defaultContactEndpoint
}

func (c *ContactService) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
