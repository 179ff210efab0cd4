// Package client talks to the LunarBase auth endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/lunar-session/authmodel"
	"github.com/jrsteele09/lunar-session/users"
)

// API paths.
const (
	LoginPath   = "/api/auth/login"
	RefreshPath = "/api/auth/refresh"
	LogoutPath  = "/api/auth/logout"
	MePath      = "/api/auth/me"
)

// RequestIDHeader carries a per-request id so server logs can be correlated.
const RequestIDHeader = "X-Request-ID"

// Client is the LunarBase auth API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a token pair and the user's identity.
func (c *Client) Login(ctx context.Context, req authmodel.LoginRequest) (*authmodel.TokenResponse, error) {
	var resp authmodel.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, LoginPath, "", req, &resp); err != nil {
		return nil, fmt.Errorf("client.Login: %w", classifyLogin(err))
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*authmodel.TokenResponse, error) {
	var resp authmodel.TokenResponse
	err := c.doRequest(ctx, http.MethodPost, RefreshPath, "", authmodel.RefreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", classifyRefresh(err))
	}
	return &resp, nil
}

// Logout invalidates refreshToken on the server.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	err := c.doRequest(ctx, http.MethodPost, LogoutPath, accessToken, authmodel.RefreshRequest{RefreshToken: refreshToken}, nil)
	if err != nil {
		return fmt.Errorf("client.Logout: %w", classify(err))
	}
	return nil
}

// Me returns the user the access token belongs to.
func (c *Client) Me(ctx context.Context, accessToken string) (*users.User, error) {
	var u users.User
	if err := c.doRequest(ctx, http.MethodGet, MePath, accessToken, nil, &u); err != nil {
		return nil, fmt.Errorf("client.Me: %w", classify(err))
	}
	return &u, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, bearer string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w: %w", authmodel.ErrNetwork, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		var apiErr authmodel.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error, Fields: apiErr.Fields}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w: %w", authmodel.ErrNetwork, err)
		}
	}
	return nil
}

// classify attaches the generic category: server failures are network
// errors, everything else stays a plain HTTPError.
func classify(err error) error {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	if httpErr.StatusCode >= 500 {
		httpErr.Err = authmodel.ErrNetwork
	}
	return httpErr
}

func classifyLogin(err error) error {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	switch {
	case httpErr.StatusCode >= 500:
		httpErr.Err = authmodel.ErrNetwork
	case len(httpErr.Fields) > 0:
		fieldErrs := authmodel.FieldErrors(authmodel.ErrorResponse{Error: httpErr.Message, Fields: httpErr.Fields})
		joined := make([]error, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			joined = append(joined, fe)
		}
		httpErr.Err = errors.Join(joined...)
	case httpErr.StatusCode == http.StatusTooManyRequests:
		httpErr.Err = authmodel.ErrNetwork
	default:
		httpErr.Err = authmodel.NewFieldError(authmodel.FieldForm, httpErr.Message)
	}
	return httpErr
}

func classifyRefresh(err error) error {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	if httpErr.StatusCode >= 500 || httpErr.StatusCode == http.StatusTooManyRequests {
		httpErr.Err = authmodel.ErrNetwork
	} else {
		httpErr.Err = authmodel.ErrRefreshFailure
	}
	return httpErr
}
