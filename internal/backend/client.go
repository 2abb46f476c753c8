// Package backend is the HTTP client for the vbastudio account API. It
// implements identity.Provider, translating transport and status-code
// failures into the identity package's classified errors.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/finaccosolutions/vbastudio/internal/domain/identity"
	"github.com/finaccosolutions/vbastudio/internal/render"
)

// Client talks to one vbastudio server.
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string `json:"token"`
	User  struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		SecretKey string `json:"secret_key"`
	} `json:"user"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SignIn exchanges credentials for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	return c.sessionCall(ctx, http.MethodPost, "/api/auth/signin", "",
		credentialsRequest{Email: email, Password: password})
}

// SignUp registers an account and returns its first session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*identity.Session, error) {
	return c.sessionCall(ctx, http.MethodPost, "/api/auth/signup", "",
		credentialsRequest{Email: email, Password: password})
}

// SignOut revokes the session behind the token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/auth/signout", token, nil)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNoContent {
		return c.classify(resp)
	}
	return nil
}

// CurrentSession resolves a token to a live session including the
// profile's secret key.
func (c *Client) CurrentSession(ctx context.Context, token string) (*identity.Session, error) {
	return c.sessionCall(ctx, http.MethodGet, "/api/auth/session", token, nil)
}

// UpdateSecretKey upserts the secret key on the caller's profile.
func (c *Client) UpdateSecretKey(ctx context.Context, token, key string) error {
	resp, err := c.do(ctx, http.MethodPut, "/api/profile/key", token, keyRequest{Key: key})
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusNoContent {
		return c.classify(resp)
	}
	return nil
}

// DownloadWorkbook asks the server to render an instructional workbook
// and returns the raw .xlsx bytes.
func (c *Client) DownloadWorkbook(ctx context.Context, token string, req render.Request) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodPost, "/api/render", token, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classify(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", identity.ErrNetwork)
	}
	return data, nil
}

func (c *Client) sessionCall(ctx context.Context, method, path, token string, body any) (*identity.Session, error) {
	resp, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, c.classify(resp)
	}

	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode session response: %w", identity.ErrNetwork)
	}
	return &identity.Session{
		Token: out.Token,
		Identity: identity.Identity{
			ID:        out.User.ID,
			Email:     out.User.Email,
			SecretKey: out.User.SecretKey,
		},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, identity.ErrNetwork)
	}
	return resp, nil
}

// classify maps a non-success status to the identity error taxonomy. The
// response body's message is preserved for operator logs only.
func (c *Client) classify(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	c.logger.Debug("backend call rejected",
		"status", resp.StatusCode, "code", body.Code, "message", body.Message)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if body.Code == "invalid_credentials" {
			return identity.ErrInvalidCredentials
		}
		return identity.ErrNotAuthenticated
	case http.StatusConflict:
		return identity.ErrEmailTaken
	case http.StatusTooManyRequests:
		return &identity.RateLimitedError{RetryAfter: retryAfter(resp)}
	case http.StatusNotFound:
		if body.Code == "profile_not_found" {
			return identity.ErrProfileNotFound
		}
	}
	return fmt.Errorf("backend status %d: %w", resp.StatusCode, identity.ErrNetwork)
}

func retryAfter(resp *http.Response) time.Duration {
	if raw := resp.Header.Get("Retry-After"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
