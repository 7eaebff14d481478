package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/permscan/permscan/internal/adapter"
)

// defaultTimeout is the per-request timeout when the caller does not
// supply its own HTTP client.
const defaultTimeout = 60 * time.Second

// maxBodySize limits response body reads to prevent memory exhaustion
// from a misbehaving backend.
const maxBodySize = 32 << 20 // 32MB

// TokenSource supplies a bearer token per request. Tokens expire, so
// the source is consulted on every call rather than once at
// construction.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields the given
// token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// apiClient is the shared HTTP plumbing of both adapters: bearer
// authentication, JSON decoding, and status code translation.
//
// Design decision: We use a struct with the http.Client rather than
// passing the client on each call because:
//  1. Client configuration (timeouts, proxies) should be consistent
//  2. Connection pooling works better with a shared client
//  3. Easier to test with a custom transport
type apiClient struct {
	client *http.Client
	token  TokenSource
}

func newAPIClient(client *http.Client, token TokenSource) *apiClient {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &apiClient{client: client, token: token}
}

// getJSON performs an authenticated GET and decodes the JSON response
// into out.
func (c *apiClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json;odata=nometadata")

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// checkStatus maps HTTP status codes to adapter sentinel errors.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", resp.Request.URL, adapter.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return fmt.Errorf("%s returned status %d: %w", resp.Request.URL, resp.StatusCode, adapter.ErrThrottled)
	default:
		return fmt.Errorf("%s returned unexpected status %d", resp.Request.URL, resp.StatusCode)
	}
}
