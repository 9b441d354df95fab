package detectorsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpClient wraps http.Client with a timeout and JSON helpers.
type httpClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *httpClient {
	return &httpClient{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

func (c *httpClient) post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// decodeResponse reads, closes, and unmarshals the response body.
func decodeResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// createSession opens one session for the given subject.
func (c *httpClient) createSession(ctx context.Context, baseURL, subject string) (sessionResponse, error) {
	resp, err := c.post(ctx, baseURL+"/sessions", map[string]string{"subject": subject})
	if err != nil {
		return sessionResponse{}, fmt.Errorf("create session request failed: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		_ = decodeResponse(resp, nil)
		return sessionResponse{}, fmt.Errorf("create session returned status %d", resp.StatusCode)
	}
	var session sessionResponse
	if err := decodeResponse(resp, &session); err != nil {
		return sessionResponse{}, err
	}
	return session, nil
}

// closeSession ends the session.
func (c *httpClient) closeSession(ctx context.Context, baseURL, sessionID string) error {
	resp, err := c.post(ctx, baseURL+"/sessions/"+sessionID+"/close", nil)
	if err != nil {
		return fmt.Errorf("close session request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = decodeResponse(resp, nil)
		return fmt.Errorf("close session returned status %d", resp.StatusCode)
	}
	return decodeResponse(resp, nil)
}

// submitDetection posts one detection and classifies the outcome.
func (c *httpClient) submitDetection(ctx context.Context, baseURL, sessionID string, det detection) (string, error) {
	resp, err := c.post(ctx, baseURL+"/sessions/"+sessionID+"/events", det)
	if err != nil {
		return "failed", err
	}

	var ack ackResponse
	if err := decodeResponse(resp, &ack); err != nil {
		return "failed", err
	}

	switch {
	case resp.StatusCode == http.StatusCreated:
		return "recorded", nil
	case resp.StatusCode == http.StatusOK && ack.Suppressed:
		return "suppressed", nil
	default:
		return "failed", fmt.Errorf("event submission returned status %d", resp.StatusCode)
	}
}

// fetchReport retrieves the score report for the session.
func (c *httpClient) fetchReport(ctx context.Context, baseURL, sessionID string) (reportResponse, error) {
	resp, err := c.get(ctx, baseURL+"/sessions/"+sessionID+"/report")
	if err != nil {
		return reportResponse{}, fmt.Errorf("report request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = decodeResponse(resp, nil)
		return reportResponse{}, fmt.Errorf("report returned status %d", resp.StatusCode)
	}
	var report reportResponse
	if err := decodeResponse(resp, &report); err != nil {
		return reportResponse{}, err
	}
	return report, nil
}
