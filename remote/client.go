// Package remote implements the deploy engine's client contracts against the
// analytics platform's REST API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/GoCodeAlone/wsctl/deploy"
)

// HTTPClient is an interface for HTTP requests (allows testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds the connection settings shared by the workspace and git
// clients.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.platform.example/v1".
	BaseURL string

	// TokenSource supplies the bearer credential for every request. The
	// clients never inspect the token.
	TokenSource oauth2.TokenSource

	// HTTPClient overrides the default client (10s timeout) when set.
	HTTPClient HTTPClient

	// UserAgent is sent with every request.
	UserAgent string
}

// client is the shared request plumbing.
type client struct {
	baseURL string
	tokens  oauth2.TokenSource
	http    HTTPClient
	agent   string
	logger  *slog.Logger
}

func newClient(cfg Config, logger *slog.Logger) (*client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote: base URL is required")
	}
	if cfg.TokenSource == nil {
		return nil, fmt.Errorf("remote: token source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	agent := cfg.UserAgent
	if agent == "" {
		agent = "wsctl"
	}
	return &client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  cfg.TokenSource,
		http:    hc,
		agent:   agent,
		logger:  logger,
	}, nil
}

// apiError is the platform's error envelope.
type apiError struct {
	Code    string `json:"errorCode"`
	Message string `json:"message"`
}

// response wraps the interesting parts of an HTTP response.
type response struct {
	status    int
	body      []byte
	operation string        // Operation-Id header on 202 responses
	retry     time.Duration // Retry-After header, if present
}

// do issues one request with bearer auth and returns the raw response. The
// caller translates non-2xx statuses through translateError so the engine
// only ever sees its own error taxonomy.
func (c *client) do(ctx context.Context, method, path string, payload any) (*response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("remote: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("remote: create request: %w", err)
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, &deploy.AuthenticationError{Operation: method + " " + path}
	}
	token.SetAuthHeader(req)
	req.Header.Set("User-Agent", c.agent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read response: %w", err)
	}
	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode)

	out := &response{
		status:    resp.StatusCode,
		body:      data,
		operation: resp.Header.Get("Operation-Id"),
	}
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			out.retry = time.Duration(secs) * time.Second
		}
	}
	return out, nil
}

// ok reports whether the status is 2xx.
func (r *response) ok() bool { return r.status >= 200 && r.status < 300 }

func (r *response) decode(v any) error {
	if len(r.body) == 0 {
		return nil
	}
	return json.Unmarshal(r.body, v)
}

// translateError maps an HTTP failure onto the engine's error taxonomy.
func translateError(op string, r *response) error {
	var apiErr apiError
	_ = json.Unmarshal(r.body, &apiErr)

	msg := apiErr.Message
	if msg == "" {
		msg = strings.TrimSpace(string(r.body))
	}
	if msg == "" {
		msg = http.StatusText(r.status)
	}

	switch r.status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &deploy.AuthenticationError{Operation: op, Status: r.status}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, deploy.ErrNotFound)
	case http.StatusConflict:
		// Covers races where the resource appeared between the existence
		// check and the create call.
		name := apiErr.Code
		if name == "" {
			name = msg
		}
		return fmt.Errorf("%s: %w", op, &deploy.ResourceConflictError{Kind: "resource", Name: name})
	}

	return fmt.Errorf("%s: status %d: %s", op, r.status, msg)
}
