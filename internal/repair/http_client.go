package repair

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// BackendError represents a non-2xx response from the repair backend. The
// Detail field carries the backend's own message when its body was parseable.
type BackendError struct {
	StatusCode int
	Detail     string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Repair failed: %d", e.StatusCode)
}

// HTTPClient is the real backend client. A repair submission is a single
// request-response exchange: no retry, no client-side timeout. Cancellation
// only happens through the caller's context.
type HTTPClient struct {
	baseURL    string
	token      string
	agentID    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// SetAgentID attaches an agent identifier sent on every request for
// backend-side correlation.
func (c *HTTPClient) SetAgentID(id string) {
	c.agentID = id
}

func (c *HTTPClient) RepairStandard(ctx context.Context, req StandardRequest) (*Response, error) {
	c.logger.Info("submitting standard repair",
		"file_path", req.FilePath,
		"offset_seconds", req.OffsetSeconds,
		"keep_duration", req.KeepDuration,
	)
	return c.post(ctx, "/api/v1/repair/standard", req)
}

func (c *HTTPClient) RepairPerChannel(ctx context.Context, req PerChannelRequest) (*Response, error) {
	c.logger.Info("submitting per-channel repair",
		"file_path", req.FilePath,
		"channel_count", len(req.PerChannelResults),
		"keep_duration", req.KeepDuration,
	)
	return c.post(ctx, "/api/v1/repair/per-channel", req)
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal repair request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("X-Dubalign-Request-Id", uuid.New().String())
	if c.agentID != "" {
		req.Header.Set("X-Dubalign-Agent-Id", c.agentID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		backendErr := &BackendError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(respBody, &detail); err == nil {
			backendErr.Detail = detail.Detail
		}
		c.logger.Warn("repair backend rejected request",
			"status", resp.StatusCode,
			"detail", backendErr.Detail,
		)
		return nil, backendErr
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode repair response: %w", err)
	}

	c.logger.Info("repair backend responded",
		"success", result.Success,
		"output_file", result.OutputFile,
		"output_size", result.OutputSize,
	)
	return &result, nil
}
