// Package client is the Go consumer of the order service API: it keeps a
// file-persisted session, drives the cart through checkout and wraps the
// admin endpoints the staff tooling needs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	HTTPClient  *http.Client
	SessionPath string
	Logger      *zap.Logger

	// RetryBaseDelay seeds the exponential backoff for status updates.
	// Tests shrink it; the default is 500ms.
	RetryBaseDelay time.Duration
}

type Client struct {
	baseURL    string
	http       *http.Client
	session    *SessionStore
	logger     *zap.Logger
	retryDelay time.Duration
}

func New(baseURL string, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("client: baseURL is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retryDelay := opts.RetryBaseDelay
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}

	session, err := NewSessionStore(opts.SessionPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL:    baseURL,
		http:       httpClient,
		session:    session,
		logger:     logger,
		retryDelay: retryDelay,
	}, nil
}

// Session exposes the persisted auth state, mainly for callers that want to
// check login status without a round trip.
func (c *Client) Session() *SessionStore {
	return c.session
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// APIError is a non-2xx response from the service, carrying its error code
// and human message.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.session.Token()
		if token == "" {
			return &APIError{StatusCode: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "not logged in"}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			if resp.StatusCode >= 400 {
				return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return fmt.Errorf("client: decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || !envelope.Success {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Error,
			Message:    envelope.Message,
		}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("client: decode response data: %w", err)
		}
	}
	return nil
}
