// Package mailer sends transactional email through the Resend API and runs
// the weekly summary job.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/musclelog/server/internal/config"
)

const resendEndpoint = "https://api.resend.com/emails"

// Sender delivers one email. Satisfied by *ResendClient; tests substitute a fake.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// ResendClient is a minimal client for the Resend transactional email API.
type ResendClient struct {
	apiKey string
	from   string
	client *http.Client
}

// NewResendClient creates a client using the given mail configuration.
func NewResendClient(cfg config.MailConfig) *ResendClient {
	return &ResendClient{
		apiKey: cfg.ResendAPIKey,
		from:   cfg.FromAddress,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send delivers one email. A non-2xx response is an error.
func (c *ResendClient) Send(ctx context.Context, to, subject, html string) error {
	if c.apiKey == "" {
		return fmt.Errorf("resend API key is not configured")
	}

	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
