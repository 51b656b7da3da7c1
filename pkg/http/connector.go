package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const (
	defaultMaxResponseBytes = 4 << 20
	maxErrorMessageBytes    = 512
)

type Connector struct {
	baseURL          string
	httpClient       *http.Client
	maxResponseBytes int64
	logger           *zap.Logger
}

type ConnectorConfig struct {
	BaseURL string
	// MaxResponseBytes caps the response body read; 0 means 4 MiB
	MaxResponseBytes int64
	Logger           *zap.Logger
}

func NewConnector(config *ConnectorConfig, options ...HttpOpts) *Connector {
	maxResponse := config.MaxResponseBytes
	if maxResponse <= 0 {
		maxResponse = defaultMaxResponseBytes
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Connector{
		baseURL:          config.BaseURL,
		httpClient:       newClient(options...),
		maxResponseBytes: maxResponse,
		logger:           logger,
	}
}

type RequestOpt func(*requestConfig)

type requestConfig struct {
	headers     map[string]string
	overrideURL string
}

func WithHeader(key, value string) RequestOpt {
	return func(c *requestConfig) {
		if c.headers == nil {
			c.headers = make(map[string]string)
		}
		c.headers[key] = value
	}
}

func WithURL(url string) RequestOpt {
	return func(c *requestConfig) {
		c.overrideURL = url
	}
}

// DoRequest sends reqBody as JSON and decodes a 2xx JSON answer into respBody.
// Transport failures come back as *NetworkError, non-2xx answers as *HTTPError.
func (c *Connector) DoRequest(ctx context.Context, method, endpoint string, reqBody, respBody any, opts ...RequestOpt) error {
	cfg := &requestConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	url := c.baseURL + endpoint
	if cfg.overrideURL != "" {
		url = cfg.overrideURL
	}

	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
		// Logging transport reads the payload size from context
		ctx = context.WithValue(ctx, bodySizeContextKey{}, len(jsonData))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range cfg.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return &NetworkError{Err: fmt.Errorf("read response body: %w", err)}
	}
	if int64(len(bodyBytes)) > c.maxResponseBytes {
		return fmt.Errorf("response from %s exceeds %d bytes", endpoint, c.maxResponseBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("non-2xx response",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(bodyBytes), maxErrorMessageBytes),
		}
	}

	if respBody != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NetworkError represents a network-level error (connection, timeout, etc.)
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the same request may succeed:
// network failures, 429 and 5xx answers.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}

	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StatusCode extracts the HTTP status of err, or 0 when err carries none.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
