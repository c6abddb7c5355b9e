// Package api is the HTTP client for the route catalogue API.
package api

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
	"time"

	"github.com/spraywall/spraywall/pkg/core"
)

// DefaultTimeout applies when New is given a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// StatusError is a non-success response from the server.
type StatusError struct {
	Code    int
	Message string
	Errors  []core.FieldError
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Message)
}

// Is lets errors.Is match a 404 against core.ErrRouteNotFound.
func (e *StatusError) Is(target error) bool {
	return target == core.ErrRouteNotFound && e.Code == http.StatusNotFound
}

// Client handles communication with the route catalogue server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

type savedResponse struct {
	Message string     `json:"message"`
	Route   core.Route `json:"route"`
}

// CreateRoute posts a new route and returns it as stored.
func (c *Client) CreateRoute(ctx context.Context, in core.RouteInput) (core.Route, error) {
	var out savedResponse
	if err := c.roundTrip(ctx, http.MethodPost, "/api/routes", in, http.StatusCreated, &out); err != nil {
		return core.Route{}, err
	}
	return out.Route, nil
}

// ListRoutes fetches the routes matching q.
func (c *Client) ListRoutes(ctx context.Context, q core.ListQuery) ([]core.Route, error) {
	path := "/api/routes"
	if v := q.Values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out []core.Route
	if err := c.roundTrip(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRoute fetches one route.
func (c *Client) GetRoute(ctx context.Context, id string) (core.Route, error) {
	var out core.Route
	if err := c.roundTrip(ctx, http.MethodGet, "/api/routes/"+url.PathEscape(id), nil, http.StatusOK, &out); err != nil {
		return core.Route{}, err
	}
	return out, nil
}

// UpdateRoute replaces a route.
func (c *Client) UpdateRoute(ctx context.Context, id string, in core.RouteInput) (core.Route, error) {
	var out core.Route
	if err := c.roundTrip(ctx, http.MethodPut, "/api/routes/"+url.PathEscape(id), in, http.StatusOK, &out); err != nil {
		return core.Route{}, err
	}
	return out, nil
}

// DeleteRoute removes a route.
func (c *Client) DeleteRoute(ctx context.Context, id string) error {
	return c.roundTrip(ctx, http.MethodDelete, "/api/routes/"+url.PathEscape(id), nil, http.StatusNoContent, nil)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, want int, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.httpClient.Do(req)
}

func decodeStatusError(resp *http.Response) error {
	se := &StatusError{Code: resp.StatusCode}
	var payload struct {
		Message string            `json:"message"`
		Errors  []core.FieldError `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &payload); err == nil {
		se.Message = payload.Message
		se.Errors = payload.Errors
	} else {
		se.Message = strings.TrimSpace(string(data))
	}
	return se
}

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	ok := errors.As(err, &se)
	return se, ok
}
