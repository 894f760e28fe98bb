// Package collaborators defines the request/response boundaries the node
// handlers call into: mail delivery, row storage and approver alerts. The
// engine core never talks to these services directly.
package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Message is one outbound email.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Mailer delivers email on behalf of email nodes.
type Mailer interface {
	Send(ctx context.Context, message Message) error
}

// HTTPMailer posts messages to a transactional mail provider endpoint.
type HTTPMailer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPMailer creates a mailer targeting the given provider endpoint.
func NewHTTPMailer(endpoint, apiKey string) *HTTPMailer {
	return &HTTPMailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (m *HTTPMailer) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal mail message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create mail request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail provider request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return fmt.Errorf("mail provider returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// LogMailer records messages on the logger instead of sending them. Used in
// development and tests.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, message Message) error {
	m.logger.Info("Mail delivery suppressed",
		"to", message.To,
		"subject", message.Subject)

	return nil
}
