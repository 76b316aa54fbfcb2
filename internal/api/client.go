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

	"fieldsnap/internal/config"
	"fieldsnap/internal/queue"
)

// ErrUnavailable reports that no daemon answered at the configured address.
var ErrUnavailable = errors.New("fieldsnapd is not reachable")

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to a running daemon over HTTP.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the daemon configured in cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return NewClientForAddress(cfg.API.Bind, cfg.API.Token)
}

// NewClientForAddress builds a client for bind, which may be host:port or a URL.
func NewClientForAddress(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("api bind address is empty")
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	return &Client{
		base:  base,
		token: token,
		// Wait requests hold the connection up to MaxWaitTimeout.
		http: &http.Client{Timeout: MaxWaitTimeout + 15*time.Second},
	}, nil
}

// Status fetches the daemon status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// ListItems returns items, optionally filtered by group and statuses.
func (c *Client) ListItems(ctx context.Context, group string, statuses ...queue.Status) ([]Item, error) {
	values := url.Values{}
	if group != "" {
		values.Set("group", group)
	}
	for _, status := range statuses {
		values.Add("status", string(status))
	}
	var out ItemsResponse
	if err := c.do(ctx, http.MethodGet, "/api/items", values, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Enqueue adds an item and returns its id.
func (c *Client) Enqueue(ctx context.Context, spec queue.EnqueueSpec) (string, error) {
	var out EnqueueResponse
	if err := c.do(ctx, http.MethodPost, "/api/items", nil, spec, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetItem fetches one item.
func (c *Client) GetItem(ctx context.Context, id string) (Item, error) {
	var out Item
	err := c.do(ctx, http.MethodGet, "/api/items/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// UpdateMetadata edits an item's location or caption.
func (c *Client) UpdateMetadata(ctx context.Context, id string, update queue.MetadataUpdate) (Item, error) {
	var out Item
	err := c.do(ctx, http.MethodPatch, "/api/items/"+url.PathEscape(id)+"/metadata", nil, update, &out)
	return out, err
}

// RemoveItem deletes one item.
func (c *Client) RemoveItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/items/"+url.PathEscape(id), nil, nil, nil)
}

// Retry returns failed items to pending. No ids retries every failed item.
func (c *Client) Retry(ctx context.Context, ids ...string) (int, error) {
	var out CountResponse
	if err := c.do(ctx, http.MethodPost, "/api/items/retry", nil, RetryRequest{IDs: ids}, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// ClearCompleted removes uploaded items.
func (c *Client) ClearCompleted(ctx context.Context) (int, error) {
	var out CountResponse
	if err := c.do(ctx, http.MethodPost, "/api/items/clear-completed", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// ClearGroup removes every item of group.
func (c *Client) ClearGroup(ctx context.Context, group string) (int, error) {
	var out CountResponse
	if err := c.do(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(group), nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Drain requests a drain pass. With wait set the call returns the pass result.
func (c *Client) Drain(ctx context.Context, wait bool) (DrainResponse, error) {
	values := url.Values{}
	if wait {
		values.Set("wait", "true")
	}
	var out DrainResponse
	err := c.do(ctx, http.MethodPost, "/api/drain", values, nil, &out)
	return out, err
}

// Groups lists every known group.
func (c *Client) Groups(ctx context.Context) ([]queue.GroupSummary, error) {
	var out GroupsResponse
	if err := c.do(ctx, http.MethodGet, "/api/groups", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// Progress fetches the progress summary of group.
func (c *Client) Progress(ctx context.Context, group string) (ProgressResponse, error) {
	var out ProgressResponse
	err := c.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(group)+"/progress", nil, nil, &out)
	return out, err
}

// Uploaded lists the uploaded items of group.
func (c *Client) Uploaded(ctx context.Context, group string) (UploadedResponse, error) {
	var out UploadedResponse
	err := c.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(group)+"/uploaded", nil, nil, &out)
	return out, err
}

// Wait blocks until group has nothing pending or timeout elapses.
func (c *Client) Wait(ctx context.Context, group string, timeout time.Duration) (WaitResponse, error) {
	values := url.Values{}
	values.Set("timeout", timeout.String())
	var out WaitResponse
	err := c.do(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(group)+"/wait", values, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w at %s: %v", ErrUnavailable, c.base.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &payload) != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// BaseURL returns the daemon address the client targets.
func (c *Client) BaseURL() string {
	return c.base.String()
}

