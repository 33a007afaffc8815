package arrutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"plexmaint/internal/httputil"
)

// Client provides shared HTTP plumbing for Sonarr/Radarr v3 APIs.
type Client struct {
	BaseURL string
	APIKey  string
	Name    string
	HTTP    *http.Client
}

func New(name, baseURL, apiKey string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	if err := httputil.ValidateIntegrationURL(baseURL); err != nil {
		return nil, err
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Name:    name,
		HTTP:    httputil.NewClientWithTimeout(httputil.IntegrationTimeout),
	}, nil
}

// StatusError is returned for non-2xx responses so callers can classify
// failures (auth vs upstream availability) without string matching.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsAuth reports whether err is an authentication failure from the service.
func IsAuth(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden)
}

// IsUnavailable reports whether err looks like the service being down:
// a 5xx response or a transport-level failure.
func IsUnavailable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500
	}
	return err != nil && !IsAuth(err)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (json.RawMessage, error) {
	u := c.BaseURL + "/api/v3" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	defer httputil.DrainBody(resp)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Service: c.Name, StatusCode: resp.StatusCode, Body: httputil.Truncate(respBody, 200)}
	}

	return json.RawMessage(respBody), nil
}

func (c *Client) DoGet(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) DoPut(ctx context.Context, path string, body json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPut, path, nil, bytes.NewReader(body))
}

func (c *Client) DoDelete(ctx context.Context, path string, query url.Values) error {
	_, err := c.do(ctx, http.MethodDelete, path, query, nil)
	return err
}

func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.DoGet(ctx, "/system/status", nil)
	return err
}
