package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/credenflow/credenflow/pkg/models"
	"github.com/credenflow/credenflow/pkg/protocol"
	"github.com/credenflow/credenflow/pkg/template"
)

type Node struct {
	logger *slog.Logger
}

func (n *Node) Execute(ctx context.Context, input protocol.Input) (*models.Outcome, error) {
	serviceURL, ok := input.Node.Data["service_url"].(string)
	if !ok || serviceURL == "" {
		return models.Failed("missing required field 'service_url'"), nil
	}

	documentRef, ok := input.Node.Data["document"].(string)
	if !ok || documentRef == "" {
		return models.Failed("missing required field 'document'"), nil
	}

	snapshot := input.Context.Snapshot()
	document := template.RenderValue(documentRef, snapshot)

	timeout := 120
	if value, ok := input.Node.Data["timeout"].(float64); ok {
		timeout = int(value)
	}

	payload, err := json.Marshal(map[string]any{"document": document})
	if err != nil {
		return nil, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create ocr request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: time.Duration(timeout) * time.Second}

	resp, err := client.Do(req)
	if err != nil {
		return models.Failed(fmt.Sprintf("ocr service unreachable: %v", err)), nil
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Failed(fmt.Sprintf("read ocr response: %v", err)), nil
	}

	if resp.StatusCode >= 400 {
		return models.Failed(fmt.Sprintf("ocr service returned HTTP %d: %s", resp.StatusCode, respBody)), nil
	}

	var extracted map[string]any
	if err := json.Unmarshal(respBody, &extracted); err != nil {
		return models.Failed(fmt.Sprintf("ocr response is not an object: %v", err)), nil
	}

	resultKey := input.Node.ID
	if key, ok := input.Node.Data["result_key"].(string); ok && key != "" {
		resultKey = key
	}

	done := 100
	outcome := models.Completed(extracted, map[string]any{resultKey: extracted})
	outcome.Progress = &done

	return outcome, nil
}
