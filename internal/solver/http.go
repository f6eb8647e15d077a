package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"yearn-vaults/internal/observability"
)

type apiError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	ErrorType   string `json:"errorType"`
}

// doJSON sends one request and decodes a JSON answer. Aggregator quotes go
// stale quickly, so failures are returned as-is instead of retried.
func doJSON(ctx context.Context, client *http.Client, source, endpoint, method, target string, headers map[string]string, payload, result interface{}) (err error) {
	start := time.Now()
	defer func() {
		observability.Upstream().Observe(source, endpoint, err, time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil {
			switch {
			case apiErr.Description != "":
				return fmt.Errorf("%s: %s", source, apiErr.Description)
			case apiErr.Message != "":
				return fmt.Errorf("%s: %s", source, apiErr.Message)
			case apiErr.ErrorType != "":
				return fmt.Errorf("%s: %s", source, apiErr.ErrorType)
			}
		}
		return fmt.Errorf("%s: unexpected status code %d", source, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
