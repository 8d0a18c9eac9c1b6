// Package client is a typed client for the docsdesk REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/docsdesk/docsdesk/internal/model"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("docsdesk api: %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("docsdesk api: %d: %s", e.StatusCode, e.Message)
}

// Client calls a docsdesk server. It performs no retries.
type Client struct {
	baseURL string
	apiKey  string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates requests with the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithToken authenticates requests with a bearer session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the server at baseURL, e.g. http://127.0.0.1:8080.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListUsers returns all users ordered by sortColumn (see model.UserSortColumn).
func (c *Client) ListUsers(ctx context.Context, sortColumn int, asc bool) ([]model.User, error) {
	q := url.Values{}
	q.Set("sort_column", strconv.Itoa(sortColumn))
	q.Set("asc", strconv.FormatBool(asc))

	var resp model.UserListResponse
	if err := c.do(ctx, http.MethodGet, "/api/user/list?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return resp.Users, nil
}

// ListRegistrationRequests returns the pending registration requests,
// newest first.
func (c *Client) ListRegistrationRequests(ctx context.Context) ([]model.RegistrationRequest, error) {
	var resp model.RegistrationListResponse
	if err := c.do(ctx, http.MethodGet, "/api/registration", nil, &resp); err != nil {
		return nil, fmt.Errorf("list registration requests: %w", err)
	}
	return resp.Requests, nil
}

// ApproveRegistrationRequest approves the pending request id.
func (c *Client) ApproveRegistrationRequest(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/api/registration/"+url.PathEscape(id)+"/approve", nil, nil); err != nil {
		return fmt.Errorf("approve registration request %s: %w", id, err)
	}
	return nil
}

// RejectRegistrationRequest rejects the pending request id. An empty reason
// sends no body.
func (c *Client) RejectRegistrationRequest(ctx context.Context, id, reason string) error {
	var form url.Values
	if reason != "" {
		form = url.Values{"reason": {reason}}
	}
	if err := c.do(ctx, http.MethodPost, "/api/registration/"+url.PathEscape(id)+"/reject", form, nil); err != nil {
		return fmt.Errorf("reject registration request %s: %w", id, err)
	}
	return nil
}

// DeleteRegistrationRequest soft-deletes the request id.
func (c *Client) DeleteRegistrationRequest(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/registration/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete registration request %s: %w", id, err)
	}
	return nil
}

// Register files a self-service registration request. It needs no
// credentials.
func (c *Client) Register(ctx context.Context, username, email string) error {
	form := url.Values{"username": {username}, "email": {email}}
	if err := c.do(ctx, http.MethodPut, "/api/registration", form, nil); err != nil {
		return fmt.Errorf("register %s: %w", username, err)
	}
	return nil
}

// Session is the result of a successful login.
type Session struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   string `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login exchanges operator credentials for a session token. The client
// uses the token for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/session", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var s Session
	if err := c.send(req, &s); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	c.token = s.Token
	return &s, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case c.apiKey != "":
		req.Header.Set("X-API-Key", c.apiKey)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends form (if any) URL-encoded and decodes a JSON response into out
// (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: resp.Status}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope model.ErrorResponse
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Type = envelope.Error.Type
		apiErr.Message = envelope.Error.Message
	}
	return apiErr
}
