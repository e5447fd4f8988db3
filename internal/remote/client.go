// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/model"
)

// DefaultTimeout bounds each request to the document store.
const DefaultTimeout = 30 * time.Second

// maxResponseBody limits how much of a response is read.
const maxResponseBody = 16 << 20

// =============================================================================
// TYPES
// =============================================================================

// User is a signed-in account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

// Profile is the account plus chat statistics.
type Profile struct {
	User
	TotalChats  int   `json:"totalChats"`
	LastUpdated int64 `json:"lastUpdated"`
}

// Backend is the auth and document-store contract the client relies on.
// LoadChats and SaveChats make every Backend usable as a storage.Remote.
type Backend interface {
	SignUp(ctx context.Context, email, password, displayName string) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, code, newPassword string) error
	Profile(ctx context.Context) (*Profile, error)
	UpdateProfile(ctx context.Context, displayName string) (*Profile, error)
	LoadChats(ctx context.Context) (map[string]*model.Session, error)
	SaveChats(ctx context.Context, chats map[string]*model.Session) error
	CurrentUser() *User
}

type authResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type chatsDocument struct {
	Chats     map[string]json.RawMessage `json:"chats"`
	UpdatedAt int64                      `json:"updatedAt,omitempty"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to a docstore server over HTTP. Sign-in state survives
// restarts when a credentials file is configured.
type Client struct {
	baseURL    string
	httpClient *http.Client
	credsPath  string
	logger     *slog.Logger

	mu    sync.RWMutex
	creds *Credentials
}

// Ensure Client satisfies Backend.
var _ Backend = (*Client)(nil)

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     slog.Default(),
	}
}

// WithHTTPClient replaces the HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// WithCredentialsFile persists sign-in state at path and restores any
// saved state for this server.
func (c *Client) WithCredentialsFile(path string) (*Client, error) {
	c.credsPath = path
	creds, err := LoadCredentials(path)
	if err != nil {
		return c, err
	}
	if creds != nil && creds.Endpoint == c.baseURL {
		c.mu.Lock()
		c.creds = creds
		c.mu.Unlock()
	}
	return c, nil
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CurrentUser returns the signed-in user or nil.
func (c *Client) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.creds == nil {
		return nil
	}
	u := c.creds.User
	return &u
}

// SignedIn reports whether a token is held.
func (c *Client) SignedIn() bool {
	return c.CurrentUser() != nil
}

// =============================================================================
// AUTH
// =============================================================================

// SignUp creates an account and signs in.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*User, error) {
	body := map[string]string{"email": email, "password": password, "displayName": displayName}
	return c.authenticate(ctx, "/api/v1/auth/signup", body)
}

// SignIn signs in with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	return c.authenticate(ctx, "/api/v1/auth/signin", body)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("docstore returned no token")
	}

	creds := &Credentials{Endpoint: c.baseURL, User: resp.User, Token: resp.Token, SavedAt: time.Now()}
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()

	if c.credsPath != "" {
		if err := SaveCredentials(c.credsPath, creds); err != nil {
			return nil, err
		}
	}
	u := resp.User
	return &u, nil
}

// SignOut revokes the token on the server and forgets it locally. Local
// state is cleared even when the server cannot be reached.
func (c *Client) SignOut(ctx context.Context) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	serverErr := c.do(ctx, http.MethodPost, "/api/v1/auth/signout", token, nil, nil)
	if errors.Is(serverErr, ErrUnauthorized) {
		serverErr = nil
	}
	if err := c.forget(); err != nil {
		return err
	}
	return serverErr
}

// ResetPassword asks the server to issue a reset code for email.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/auth/reset", "", map[string]string{"email": email}, nil)
}

// ConfirmReset sets a new password using a reset code.
func (c *Client) ConfirmReset(ctx context.Context, code, newPassword string) error {
	body := map[string]string{"code": code, "password": newPassword}
	return c.do(ctx, http.MethodPost, "/api/v1/auth/reset/confirm", "", body, nil)
}

// =============================================================================
// PROFILE AND CHATS
// =============================================================================

// Profile returns the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.authed(ctx, http.MethodGet, "/api/v1/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile sets the display name.
func (c *Client) UpdateProfile(ctx context.Context, displayName string) (*Profile, error) {
	var p Profile
	body := map[string]string{"displayName": displayName}
	if err := c.authed(ctx, http.MethodPatch, "/api/v1/profile", body, &p); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.creds != nil {
		c.creds.User.DisplayName = p.DisplayName
	}
	c.mu.Unlock()
	return &p, nil
}

// LoadChats fetches the chat collection. Entries that do not decode as a
// session are skipped.
func (c *Client) LoadChats(ctx context.Context) (map[string]*model.Session, error) {
	var doc chatsDocument
	if err := c.authed(ctx, http.MethodGet, "/api/v1/chats", nil, &doc); err != nil {
		return nil, err
	}

	chats := make(map[string]*model.Session, len(doc.Chats))
	for id, raw := range doc.Chats {
		var sess model.Session
		if err := json.Unmarshal(raw, &sess); err != nil {
			c.logger.Debug("skipping undecodable remote session", slog.String("id", id), slog.Any("error", err))
			continue
		}
		if sess.ID == "" {
			sess.ID = id
		}
		chats[id] = &sess
	}
	return chats, nil
}

// SaveChats replaces the chat collection.
func (c *Client) SaveChats(ctx context.Context, chats map[string]*model.Session) error {
	doc := chatsDocument{Chats: make(map[string]json.RawMessage, len(chats))}
	for id, sess := range chats {
		raw, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to encode session %s: %w", id, err)
		}
		doc.Chats[id] = raw
	}
	return c.authed(ctx, http.MethodPut, "/api/v1/chats", doc, nil)
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) token() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.creds == nil {
		return "", ErrNotSignedIn
	}
	return c.creds.Token, nil
}

func (c *Client) forget() error {
	c.mu.Lock()
	c.creds = nil
	c.mu.Unlock()
	if c.credsPath == "" {
		return nil
	}
	return RemoveCredentials(c.credsPath)
}

// authed performs a request with the bearer token. A 401 means the token
// was revoked or expired, so the sign-in state is dropped.
func (c *Client) authed(ctx context.Context, method, path string, body, out any) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	err = c.do(ctx, method, path, token, body, out)
	if errors.Is(err, ErrUnauthorized) {
		c.logger.Warn("docstore rejected token, signing out", slog.String("path", path))
		if ferr := c.forget(); ferr != nil {
			c.logger.Warn("failed to clear credentials", slog.Any("error", ferr))
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("docstore request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Message = er.Error.Message
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
