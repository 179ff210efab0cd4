package client

import (
	"context"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// AuthTransport attaches the bearer token from Source to every request. When
// the server answers 401 it calls Unauthorized once and, if that reports a
// fresh token, retries the request with it.
type AuthTransport struct {
	Source       oauth2.TokenSource
	Unauthorized func(ctx context.Context) bool
	// Base is the transport used for the actual requests; nil means http.DefaultTransport.
	Base http.RoundTripper
}

// NewAuthClient returns an HTTP client authenticated by source.
func NewAuthClient(source oauth2.TokenSource, unauthorized func(ctx context.Context) bool) *http.Client {
	return &http.Client{Transport: &AuthTransport{Source: source, Unauthorized: unauthorized}}
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.send(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.Unauthorized == nil {
		return resp, err
	}
	if req.Body != nil && req.GetBody == nil {
		// The body cannot be replayed.
		return resp, nil
	}
	if !t.Unauthorized(req.Context()) {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	retry := req
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry = req.Clone(req.Context())
		retry.Body = body
	}
	return t.send(retry)
}

func (t *AuthTransport) send(req *http.Request) (*http.Response, error) {
	tok, err := t.Source.Token()
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	r := req.Clone(req.Context())
	tok.SetAuthHeader(r)
	return t.base().RoundTrip(r)
}
