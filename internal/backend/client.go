// Package backend holds thin clients for the remote ride-hailing API. The
// backend itself is an external collaborator; these clients only shape
// requests, attach credentials and normalize failures.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/gocomet/ride-sdk/pkg/errors"
)

// TokenProvider supplies the bearer token for authenticated calls
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token
type StaticToken string

// Token returns the static token
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client is the shared authenticated HTTP client for all backend calls
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
}

// NewClient creates a backend client. A nil token provider leaves requests
// unauthenticated, which the sandbox backend accepts.
func NewClient(baseURL string, timeout time.Duration, tokens TokenProvider) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// do issues a JSON request and decodes a JSON response into out (when out is
// non-nil). A 401 maps to ErrUnauthenticated; other non-2xx statuses surface
// as plain errors for the caller to classify.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return apperrors.Wrap(err, "resolve token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return apperrors.ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperrors.Wrap(err, "decode response")
		}
	}
	return nil
}
