// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/codecraft-tui/internal/clock"
)

// =============================================================================
// HELPERS
// =============================================================================

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "docstore.db"))
	cfg.JWTSecret = "test-secret"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.AuthRateLimit = 0
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func do(t *testing.T, s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func signUp(t *testing.T, s *Server, email, password string) AuthResponse {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"email": email, "password": password, "displayName": "Ada",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[AuthResponse](t, rec)
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNewRequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecret = ""
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestOpenDBUnknownDriver(t *testing.T) {
	_, err := OpenDB("mysql", "whatever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown db driver")
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2",
		pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, DriverSQLite, body["driver"])
}

// =============================================================================
// AUTH
// =============================================================================

func TestSignUpAndSignIn(t *testing.T) {
	s := newTestServer(t)

	up := signUp(t, s, "Ada@Example.com", "hunter22")
	assert.NotEmpty(t, up.Token)
	assert.Len(t, up.User.ID, 26, "user ids are ULIDs")
	assert.Equal(t, "ada@example.com", up.User.Email)
	assert.Equal(t, "Ada", up.User.DisplayName)

	rec := do(t, s, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email": "ada@example.com", "password": "hunter22",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	in := decode[AuthResponse](t, rec)
	assert.Equal(t, up.User.ID, in.User.ID)
	assert.NotEqual(t, up.Token, in.Token)
}

func TestSignUpValidation(t *testing.T) {
	s := newTestServer(t)
	signUp(t, s, "taken@example.com", "hunter22")

	tests := []struct {
		name     string
		email    string
		password string
		want     int
	}{
		{"bad email", "not-an-email", "hunter22", http.StatusBadRequest},
		{"display form email", "Ada <ada@example.com>", "hunter22", http.StatusBadRequest},
		{"short password", "new@example.com", "abc", http.StatusBadRequest},
		{"duplicate", "taken@example.com", "hunter22", http.StatusConflict},
		{"duplicate different case", "TAKEN@example.com", "hunter22", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
				"email": tt.email, "password": tt.password,
			})
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.want, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	signUp(t, s, "ada@example.com", "hunter22")

	for _, creds := range []map[string]string{
		{"email": "ada@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "hunter22"},
	} {
		rec := do(t, s, http.MethodPost, "/api/v1/auth/signin", "", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, ErrBadCredentials.Error(), decode[ErrorResponse](t, rec).Error.Message)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	for _, token := range []string{"", "garbage", "eyJhbGciOiJub25lIn0.e30."} {
		rec := do(t, s, http.MethodGet, "/api/v1/chats", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	s := newTestServer(t)
	other := &tokens{secret: []byte("other"), ttl: time.Hour, now: time.Now}
	raw, _, err := other.issue("someone", "x@example.com")
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/api/v1/profile", raw, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignOutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	up := signUp(t, s, "ada@example.com", "hunter22")

	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/profile", up.Token, nil).Code)
	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/v1/auth/signout", up.Token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/v1/profile", up.Token, nil).Code)

	// A fresh sign-in is unaffected.
	rec := do(t, s, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
		"email": "ada@example.com", "password": "hunter22",
	})
	fresh := decode[AuthResponse](t, rec)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/profile", fresh.Token, nil).Code)
}

func TestTokenExpires(t *testing.T) {
	cfg := testConfig(t)
	cfg.TokenTTL = time.Hour
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()
	fake := clock.NewFake(time.Now())
	s.WithClock(fake)

	up := signUp(t, s, "ada@example.com", "hunter22")
	fake.Advance(59 * time.Minute)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/v1/profile", up.Token, nil).Code)
	fake.Advance(2 * time.Minute)
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/v1/profile", up.Token, nil).Code)
}

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t)
	signUp(t, s, "ada@example.com", "hunter22")

	var (
		mu    sync.Mutex
		codes = map[string]string{}
	)
	s.WithResetNotifier(func(email, code string) {
		mu.Lock()
		defer mu.Unlock()
		codes[email] = code
	})

	rec := do(t, s, http.MethodPost, "/api/v1/auth/reset", "", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusAccepted, rec.Code, "unknown emails look the same")
	assert.Empty(t, codes)

	rec = do(t, s, http.MethodPost, "/api/v1/auth/reset", "", map[string]string{"email": "ADA@example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	code := codes["ada@example.com"]
	require.NotEmpty(t, code)

	confirm := map[string]string{"code": code, "password": "new-secret"}
	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodPost, "/api/v1/auth/reset/confirm", "", confirm).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodPost, "/api/v1/auth/reset/confirm", "", confirm).Code,
		"codes are single use")

	old := do(t, s, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": "ada@example.com", "password": "hunter22"})
	assert.Equal(t, http.StatusUnauthorized, old.Code)
	fresh := do(t, s, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{"email": "ada@example.com", "password": "new-secret"})
	assert.Equal(t, http.StatusOK, fresh.Code)
}

func TestResetCodeExpires(t *testing.T) {
	s := newTestServer(t)
	fake := clock.NewFake(time.Now())
	s.WithClock(fake)
	signUp(t, s, "ada@example.com", "hunter22")

	var code string
	s.WithResetNotifier(func(_, c string) { code = c })
	do(t, s, http.MethodPost, "/api/v1/auth/reset", "", map[string]string{"email": "ada@example.com"})
	require.NotEmpty(t, code)

	fake.Advance(ResetCodeTTL + time.Second)
	rec := do(t, s, http.MethodPost, "/api/v1/auth/reset/confirm", "", map[string]string{"code": code, "password": "new-secret"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthRateLimit = 1
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	limited := 0
	for i := 0; i < 10; i++ {
		rec := do(t, s, http.MethodPost, "/api/v1/auth/signin", "", map[string]string{
			"email": "ada@example.com", "password": "hunter22",
		})
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited)

	// Chat routes are not limited.
	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodGet, "/api/v1/chats", "", nil).Code)
}

// =============================================================================
// PROFILE AND CHATS
// =============================================================================

func TestGetChatsCreatesEmptyDocument(t *testing.T) {
	s := newTestServer(t)
	up := signUp(t, s, "ada@example.com", "hunter22")

	rec := do(t, s, http.MethodGet, "/api/v1/chats", up.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[ChatsDocument](t, rec)
	assert.NotNil(t, doc.Chats)
	assert.Empty(t, doc.Chats)
	assert.NotZero(t, doc.UpdatedAt)
}

func TestPutChatsRoundTrip(t *testing.T) {
	s := newTestServer(t)
	up := signUp(t, s, "ada@example.com", "hunter22")

	body := map[string]any{"chats": map[string]any{
		"1700000000000": map[string]any{"id": "1700000000000", "title": "Hello", "messages": []any{}},
		"1700000000001": map[string]any{"id": "1700000000001", "title": "Second"},
	}}
	rec := do(t, s, http.MethodPut, "/api/v1/chats", up.Token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	doc := decode[ChatsDocument](t, do(t, s, http.MethodGet, "/api/v1/chats", up.Token, nil))
	require.Len(t, doc.Chats, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal(doc.Chats["1700000000000"], &first))
	assert.Equal(t, "Hello", first["title"])

	profile := decode[Profile](t, do(t, s, http.MethodGet, "/api/v1/profile", up.Token, nil))
	assert.Equal(t, 2, profile.TotalChats)
	assert.Equal(t, doc.UpdatedAt, profile.LastUpdated)
}

func TestChatsAreIsolatedPerUser(t *testing.T) {
	s := newTestServer(t)
	ada := signUp(t, s, "ada@example.com", "hunter22")
	bob := signUp(t, s, "bob@example.com", "hunter22")

	do(t, s, http.MethodPut, "/api/v1/chats", ada.Token, map[string]any{
		"chats": map[string]any{"1": map[string]any{"id": "1"}},
	})
	doc := decode[ChatsDocument](t, do(t, s, http.MethodGet, "/api/v1/chats", bob.Token, nil))
	assert.Empty(t, doc.Chats)
}

func TestPutChatsRejectsNonObjects(t *testing.T) {
	s := newTestServer(t)
	up := signUp(t, s, "ada@example.com", "hunter22")

	rec := do(t, s, http.MethodPut, "/api/v1/chats", up.Token, map[string]any{
		"chats": map[string]any{"1": "not a session"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/chats", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+up.Token)
	raw := httptest.NewRecorder()
	s.Handler().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t)
	up := signUp(t, s, "ada@example.com", "hunter22")

	rec := do(t, s, http.MethodPatch, "/api/v1/profile", up.Token, map[string]string{"displayName": "  Countess  "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[Profile](t, rec)
	assert.Equal(t, "Countess", profile.DisplayName)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Zero(t, profile.TotalChats)

	long := make([]byte, MaxDisplayNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	rec = do(t, s, http.MethodPatch, "/api/v1/profile", up.Token, map[string]string{"displayName": string(long)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestPostgresDriver(t *testing.T) {
	dsn := os.Getenv("CODECRAFT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CODECRAFT_TEST_POSTGRES_DSN not set")
	}
	cfg := testConfig(t)
	cfg.Driver = DriverPostgres
	cfg.DSN = dsn
	s, err := New(cfg)
	require.NoError(t, err)
	defer s.Close()

	email := "pg-" + time.Now().Format("150405.000000") + "@example.com"
	up := signUp(t, s, email, "hunter22")
	rec := do(t, s, http.MethodPut, "/api/v1/chats", up.Token, map[string]any{
		"chats": map[string]any{"1": map[string]any{"id": "1"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[ChatsDocument](t, do(t, s, http.MethodGet, "/api/v1/chats", up.Token, nil))
	assert.Len(t, doc.Chats, 1)
}
