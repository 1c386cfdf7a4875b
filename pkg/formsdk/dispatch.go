package formsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Result is a successful (status < 400) response.
type Result struct {
	StatusCode int
	body       []byte
}

// Decode unmarshals the response body into target. An empty body decodes as
// an empty object, so target is left at its zero value.
func (r *Result) Decode(target any) error {
	if len(r.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Map returns the body as a generic JSON object, empty when the body is.
func (r *Result) Map() map[string]any {
	out := make(map[string]any)
	if len(r.body) > 0 {
		_ = json.Unmarshal(r.body, &out)
	}
	return out
}

// Send dispatches method+path with body serialized as JSON (omitted when
// nil). A held access token rides along as a bearer credential. Responses
// with status >= 400 come back as *APIError or *ValidationError; a failure
// to reach the backend comes back as *TransportError.
//
// A 401 received while a token was attached clears the held token and, off
// the login page, starts the interactive-login redirect. That happens here,
// before the caller sees the error, so it cannot be skipped by custom error
// handling.
func (c *Client) Send(ctx context.Context, method, path string, body any) (*Result, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token := c.Tokens.Get()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.loading.Store(true)
	defer c.loading.Store(false)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode == http.StatusUnauthorized && token != "" {
			c.Tokens.Clear()
			if !c.onLoginPage() {
				c.ToLogin()
			}
		}
		return nil, parseErrorBody(resp.StatusCode, respBody)
	}

	return &Result{StatusCode: resp.StatusCode, body: respBody}, nil
}
