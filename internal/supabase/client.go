// Package supabase is a minimal client for the Supabase auth (GoTrue) REST
// API. Credential verification is entirely the provider's job; this client
// only exchanges credentials for an identity assertion and revokes provider
// sessions.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Sentinel errors distinguishing the two login failure classes. Callers
// depend on the distinction for user messaging: unavailable must never be
// reported as bad credentials and vice versa.
var (
	ErrUnavailable        = errors.New("auth provider unavailable")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const defaultTimeout = 10 * time.Second

// Identity is the provider-asserted identity returned after a successful
// credential check.
type Identity struct {
	ID          string
	Email       string
	AccessToken string
	Metadata    map[string]any
}

// Client talks to a single Supabase project.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a client for the given project URL and API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// tokenResponse is the subset of the GoTrue password-grant response we use.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID           string         `json:"id"`
		Email        string         `json:"email"`
		UserMetadata map[string]any `json:"user_metadata"`
	} `json:"user"`
}

// SignInWithPassword verifies the credentials with the provider and returns
// the asserted identity.
//
// Returns ErrInvalidCredentials for 4xx responses (wrong email/password)
// and ErrUnavailable for transport failures and 5xx responses. The password
// is never logged.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	url := c.baseURL + "/auth/v1/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Drain the body so the connection can be reused. The provider's
		// error detail is not surfaced to avoid user-existence disclosure.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrInvalidCredentials
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, fmt.Errorf("%w: incomplete response", ErrUnavailable)
	}

	return &Identity{
		ID:          tr.User.ID,
		Email:       tr.User.Email,
		AccessToken: tr.AccessToken,
		Metadata:    tr.User.UserMetadata,
	}, nil
}

// SignOut revokes the provider-side session for the given access token.
// Used both for normal logout and to invalidate a partially-established
// provider session after a local policy denial.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	url := c.baseURL + "/auth/v1/logout"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.setHeaders(req)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("sign-out failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
