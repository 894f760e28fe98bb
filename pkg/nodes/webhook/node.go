package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/template"
)

type config struct {
	URL      string
	Method   string
	Headers  map[string]string
	Body     string
	Timeout  int
	Attempts int
	Delay    int
}

type Node struct {
	logger *slog.Logger
}

// HTTPError marks a response with status >= 400. A 4xx response is not
// retried.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func parseConfig(node *models.Node) (config, error) {
	cfg := config{
		Method:   "GET",
		Headers:  make(map[string]string),
		Timeout:  30,
		Attempts: 1,
	}

	url, ok := node.Data["url"].(string)
	if !ok || url == "" {
		return cfg, errors.New("missing required field 'url'")
	}

	cfg.URL = url

	if method, ok := node.Data["method"].(string); ok {
		cfg.Method = strings.ToUpper(method)
	}

	if headers, ok := node.Data["headers"].(map[string]any); ok {
		for key, value := range headers {
			if strVal, ok := value.(string); ok {
				cfg.Headers[key] = strVal
			}
		}
	}

	if body, ok := node.Data["body"].(string); ok {
		cfg.Body = body
	}

	if timeout, ok := node.Data["timeout"].(float64); ok {
		cfg.Timeout = int(timeout)
	}

	if retries, ok := node.Data["retries"].(map[string]any); ok {
		if attempts, ok := retries["attempts"].(float64); ok {
			cfg.Attempts = int(attempts)
		}

		if delay, ok := retries["delay"].(float64); ok {
			cfg.Delay = int(delay)
		}
	}

	return cfg, nil
}

func (n *Node) Execute(ctx context.Context, input protocol.Input) (*models.Outcome, error) {
	cfg, err := parseConfig(input.Node)
	if err != nil {
		return models.Failed(err.Error()), nil
	}

	snapshot := input.Context.Snapshot()
	url := template.RenderString(cfg.URL, snapshot)
	body := template.RenderString(cfg.Body, snapshot)

	headers := make(map[string]string, len(cfg.Headers))
	for key, value := range cfg.Headers {
		headers[key] = template.RenderString(value, snapshot)
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if attempt > 1 {
			time.Sleep(time.Duration(cfg.Delay) * time.Millisecond)
		}

		result, err := n.perform(ctx, cfg, url, body, headers)
		if err == nil {
			resultKey := input.Node.ID
			if key, ok := input.Node.Data["result_key"].(string); ok && key != "" {
				resultKey = key
			}

			return models.Completed(result, map[string]any{resultKey: result}), nil
		}

		lastErr = err

		// Retrying a 4xx would just repeat the same rejection.
		httpErr := &HTTPError{}
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
			break
		}
	}

	return models.Failed(fmt.Sprintf("webhook call failed after %d attempt(s): %v", cfg.Attempts, lastErr)), nil
}

func (n *Node) perform(ctx context.Context, cfg config, url, body string, headers map[string]string) (map[string]any, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return result, nil
}
