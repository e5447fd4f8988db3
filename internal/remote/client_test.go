// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package remote

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/codecraft-tui/internal/docstore"
	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newDocstore starts a real docstore backed by sqlite in a temp dir.
func newDocstore(t *testing.T) (*httptest.Server, *docstore.Server) {
	t.Helper()
	cfg := docstore.DefaultConfig(filepath.Join(t.TempDir(), "docstore.db"))
	cfg.JWTSecret = "test-secret"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.AuthRateLimit = 0
	cfg.Logger = quietLogger()
	ds, err := docstore.New(cfg)
	if err != nil {
		t.Fatalf("docstore.New failed: %v", err)
	}
	ts := httptest.NewServer(ds.Handler())
	t.Cleanup(func() {
		ts.Close()
		ds.Close()
	})
	return ts, ds
}

func newClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(url).WithLogger(quietLogger()).
		WithCredentialsFile(filepath.Join(t.TempDir(), CredentialsFile))
	if err != nil {
		t.Fatalf("WithCredentialsFile failed: %v", err)
	}
	return c
}

func TestSignUpPersistsCredentials(t *testing.T) {
	ts, _ := newDocstore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, CredentialsFile)

	c, _ := NewClient(ts.URL).WithCredentialsFile(path)
	user, err := c.SignUp(context.Background(), "ada@example.com", "hunter22", "Ada")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if user.Email != "ada@example.com" || user.DisplayName != "Ada" {
		t.Errorf("user = %+v", user)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("credentials not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credentials perm = %o, want 600", perm)
	}

	// A new client for the same server restores the sign-in.
	restored, err := NewClient(ts.URL).WithCredentialsFile(path)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if u := restored.CurrentUser(); u == nil || u.ID != user.ID {
		t.Errorf("restored user = %+v, want %s", u, user.ID)
	}

	// A client for a different server does not.
	other, _ := NewClient("http://127.0.0.1:1").WithCredentialsFile(path)
	if other.SignedIn() {
		t.Error("credentials leaked to a different endpoint")
	}
}

func TestSignInErrors(t *testing.T) {
	ts, _ := newDocstore(t)
	c := newClient(t, ts.URL)
	ctx := context.Background()

	if _, err := c.SignUp(ctx, "ada@example.com", "hunter22", ""); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if _, err := c.SignUp(ctx, "ada@example.com", "hunter22", ""); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate SignUp err = %v, want ErrConflict", err)
	}

	_, err := c.SignIn(ctx, "ada@example.com", "wrong-password")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("err = %v, want 401 APIError", err)
	}
	if apiErr.Message != "invalid email or password" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestOperationsRequireSignIn(t *testing.T) {
	ts, _ := newDocstore(t)
	c := newClient(t, ts.URL)
	ctx := context.Background()

	if _, err := c.Profile(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("Profile err = %v", err)
	}
	if _, err := c.LoadChats(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("LoadChats err = %v", err)
	}
	if err := c.SignOut(ctx); !errors.Is(err, ErrNotSignedIn) {
		t.Errorf("SignOut err = %v", err)
	}
}

func TestChatsRoundTrip(t *testing.T) {
	ts, _ := newDocstore(t)
	c := newClient(t, ts.URL)
	ctx := context.Background()
	if _, err := c.SignUp(ctx, "ada@example.com", "hunter22", ""); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	empty, err := c.LoadChats(ctx)
	if err != nil {
		t.Fatalf("LoadChats failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("new account has %d chats", len(empty))
	}

	now := time.UnixMilli(1700000000000)
	sess := model.NewSession("1700000000000", "deepseek", now)
	sess.Title = "Hello"
	sess.Messages = append(sess.Messages,
		model.NewUserMessage("Hi", now),
		model.NewAssistantMessage("Hello!", now))
	if err := c.SaveChats(ctx, map[string]*model.Session{sess.ID: sess}); err != nil {
		t.Fatalf("SaveChats failed: %v", err)
	}

	got, err := c.LoadChats(ctx)
	if err != nil {
		t.Fatalf("LoadChats failed: %v", err)
	}
	loaded := got[sess.ID]
	if loaded == nil || loaded.Title != "Hello" || loaded.Len() != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.Messages[1].Content != "Hello!" || !loaded.Messages[1].IsAssistant() {
		t.Errorf("assistant message = %+v", loaded.Messages[1])
	}

	profile, err := c.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.TotalChats != 1 {
		t.Errorf("TotalChats = %d, want 1", profile.TotalChats)
	}
}

func TestUpdateProfileRefreshesCurrentUser(t *testing.T) {
	ts, _ := newDocstore(t)
	c := newClient(t, ts.URL)
	ctx := context.Background()
	c.SignUp(ctx, "ada@example.com", "hunter22", "Ada")

	p, err := c.UpdateProfile(ctx, "Countess")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if p.DisplayName != "Countess" {
		t.Errorf("DisplayName = %q", p.DisplayName)
	}
	if c.CurrentUser().DisplayName != "Countess" {
		t.Error("CurrentUser not refreshed")
	}
}

func TestSignOutForgetsToken(t *testing.T) {
	ts, _ := newDocstore(t)
	path := filepath.Join(t.TempDir(), CredentialsFile)
	c, _ := NewClient(ts.URL).WithCredentialsFile(path)
	ctx := context.Background()
	c.SignUp(ctx, "ada@example.com", "hunter22", "")

	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if c.SignedIn() {
		t.Error("still signed in")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("credentials file still present: %v", err)
	}
}

func TestRevokedTokenDropsSignIn(t *testing.T) {
	ts, _ := newDocstore(t)
	ctx := context.Background()

	a := newClient(t, ts.URL)
	a.SignUp(ctx, "ada@example.com", "hunter22", "")
	token, _ := a.token()

	// A second client holding the same token signs it out server-side.
	b := newClient(t, ts.URL)
	b.creds = &Credentials{Endpoint: ts.URL, User: *a.CurrentUser(), Token: token}
	if err := b.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if _, err := a.LoadChats(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if a.SignedIn() {
		t.Error("client kept a revoked token")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ts, ds := newDocstore(t)
	codes := make(chan string, 1)
	ds.WithResetNotifier(func(_, code string) { codes <- code })

	c := newClient(t, ts.URL)
	ctx := context.Background()
	c.SignUp(ctx, "ada@example.com", "hunter22", "")
	c.SignOut(ctx)

	if err := c.ResetPassword(ctx, "ada@example.com"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	code := <-codes
	if err := c.ConfirmReset(ctx, code, "brand-new"); err != nil {
		t.Fatalf("ConfirmReset failed: %v", err)
	}
	if _, err := c.SignIn(ctx, "ada@example.com", "brand-new"); err != nil {
		t.Errorf("SignIn with new password failed: %v", err)
	}
}

func TestStoreMirrorsToDocstore(t *testing.T) {
	ts, _ := newDocstore(t)
	ctx := context.Background()
	c := newClient(t, ts.URL)
	c.SignUp(ctx, "ada@example.com", "hunter22", "")

	cfg := storage.DefaultConfig(t.TempDir())
	cfg.Logger = quietLogger()
	store, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	store.AttachRemote(c)

	id := store.CurrentID()
	store.Append(id, model.NewUserMessage("synced", time.Now()))
	store.Flush()

	// A second device pulls the same account.
	cfg2 := storage.DefaultConfig(t.TempDir())
	cfg2.Logger = quietLogger()
	other, err := storage.Open(cfg2)
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	other.AttachRemote(c)
	if _, err := other.Sync(ctx); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	got, err := other.Get(id)
	if err != nil {
		t.Fatalf("session %s not pulled: %v", id, err)
	}
	if got.Len() != 1 || got.Messages[0].Content != "synced" {
		t.Errorf("pulled messages = %+v", got.Messages)
	}
}
