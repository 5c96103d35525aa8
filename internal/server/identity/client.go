package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/photoai/internal/common"
)

// Client is an Issuer backed by a GoTrue-compatible REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates an identity API client. baseURL is the auth root,
// e.g. https://project.supabase.co/auth/v1.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type verifyResponse struct {
	User userResponse `json:"user"`
}

type listUsersResponse struct {
	Users []userResponse `json:"users"`
}

func (c *Client) SendCode(ctx context.Context, email string) error {
	resp, err := c.do(ctx, http.MethodPost, "/otp", map[string]any{
		"email":       email,
		"create_user": true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: identity send code status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) VerifyCode(ctx context.Context, email, code string) (*User, error) {
	resp, err := c.do(ctx, http.MethodPost, "/verify", map[string]any{
		"type":  "email",
		"email": email,
		"token": code,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return nil, common.ErrInvalidCode
	default:
		return nil, fmt.Errorf("%w: identity verify status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode verify response: %w", common.ErrUpstreamUnavailable, err)
	}
	if body.User.ID == "" {
		return nil, fmt.Errorf("%w: verify response without user", common.ErrUpstreamUnavailable)
	}

	return &User{ID: body.User.ID, Email: body.User.Email}, nil
}

func (c *Client) LookupUser(ctx context.Context, email string) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/admin/users?filter="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, common.ErrIdentityNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: identity lookup status %d", common.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var body listUsersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode users: %w", common.ErrUpstreamUnavailable, err)
	}

	// filter is a substring match on the server side
	for _, u := range body.Users {
		if strings.EqualFold(u.Email, email) && u.ID != "" {
			return &User{ID: u.ID, Email: u.Email}, nil
		}
	}
	return nil, common.ErrIdentityNotFound
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUpstreamUnavailable, err)
	}
	return resp, nil
}
