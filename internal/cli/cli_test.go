// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/config"
	"github.com/jeranaias/codecraft-tui/internal/docstore"
	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type fakePrompter struct {
	lines    []string
	password string
	asked    []string
}

func (p *fakePrompter) Line(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.lines) == 0 {
		return "", errors.New("no input")
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *fakePrompter) Password(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	return p.password, nil
}

type result struct {
	stdout string
	stderr string
	code   int
}

// isolate points every config and data path at a temp dir and clears the
// environment overrides that would leak in from the host.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CODECRAFT_HOME", dir)
	for _, env := range []string{
		"OPENROUTER_API_KEY", "CODECRAFT_API_KEY", "CODECRAFT_ENDPOINT",
		"CODECRAFT_MODEL", "CODECRAFT_VERBOSITY", "CODECRAFT_REMOTE_URL",
		"CODECRAFT_DATA_DIR", "CODECRAFT_JWT_SECRET", "CODECRAFT_DB_DRIVER",
		"CODECRAFT_DB_DSN", "NO_COLOR",
	} {
		t.Setenv(env, "")
	}
	return dir
}

func run(t *testing.T, p Prompter, args ...string) result {
	t.Helper()
	if p == nil {
		p = &fakePrompter{}
	}
	var out, errw bytes.Buffer
	code := execute(context.Background(), &runner{prompt: p}, args, &out, &errw)
	return result{stdout: out.String(), stderr: errw.String(), code: code}
}

func deltaRecord(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id": "gen-1",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]string{"content": text}},
		},
	})
	return "data: " + string(b) + "\n\n"
}

// completionServer streams parts as one reply per request.
func completionServer(t *testing.T, parts ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, p := range parts {
			io.WriteString(w, deltaRecord(p))
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func withCompletions(t *testing.T, parts ...string) *atomic.Int32 {
	t.Helper()
	srv, calls := completionServer(t, parts...)
	t.Setenv("CODECRAFT_API_KEY", "sk-or-test")
	t.Setenv("CODECRAFT_ENDPOINT", srv.URL)
	return calls
}

// =============================================================================
// ROOT AND INFO COMMANDS
// =============================================================================

func TestVersion(t *testing.T) {
	isolate(t)
	res := run(t, nil, "version")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "codecraft "+Version)
}

func TestUnknownCommand(t *testing.T) {
	isolate(t)
	res := run(t, nil, "frobnicate")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "frobnicate")
}

func TestModelsList(t *testing.T) {
	isolate(t)
	res := run(t, nil, "models")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "deepseek")
	assert.Contains(t, res.stdout, "gemma")
}

func TestModelsJSON(t *testing.T) {
	isolate(t)
	res := run(t, nil, "--json", "models")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var resp struct {
		Success bool              `json:"success"`
		Data    []json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Data, len(registry.Default().List()))
}

func TestExamplesPrintsOnePrompt(t *testing.T) {
	isolate(t)
	res := run(t, nil, "examples", "deepseek", "1")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	want := registry.Examples("deepseek").Examples[0].Prompt
	assert.Equal(t, want, strings.TrimSpace(res.stdout))
}

func TestExamplesOutOfRange(t *testing.T) {
	isolate(t)
	res := run(t, nil, "examples", "deepseek", "99")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "no example")
}

func TestExamplesUnknownModel(t *testing.T) {
	isolate(t)
	res := run(t, nil, "examples", "nope")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "codecraft models")
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigPathAndInit(t *testing.T) {
	dir := isolate(t)
	want := filepath.Join(dir, config.FileName)

	res := run(t, nil, "config", "path")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, want, strings.TrimSpace(res.stdout))

	res = run(t, nil, "config", "init")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, want)

	res = run(t, nil, "config", "init")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "--force")

	res = run(t, nil, "config", "init", "--force")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
}

func TestConfigSetAndGet(t *testing.T) {
	isolate(t)

	res := run(t, nil, "config", "set", "model.default", "gemma")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = run(t, nil, "config", "get", "model.default")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, "gemma", strings.TrimSpace(res.stdout))

	res = run(t, nil, "config", "set", "session.silence_timeout", "12s")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	res = run(t, nil, "config", "get", "session.silence_timeout")
	assert.Equal(t, "12s", strings.TrimSpace(res.stdout))
}

func TestConfigSecretsAreHidden(t *testing.T) {
	isolate(t)

	res := run(t, nil, "config", "set", "api.key", "sk-or-very-secret")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = run(t, nil, "config", "get", "api.key")
	assert.Equal(t, "(set)", strings.TrimSpace(res.stdout))

	res = run(t, nil, "config", "show")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.NotContains(t, res.stdout, "sk-or-very-secret")
}

func TestConfigSetRejectsInvalidValue(t *testing.T) {
	isolate(t)
	res := run(t, nil, "config", "set", "model.verbosity", "loud")
	assert.Equal(t, ExitError, res.code)

	res = run(t, nil, "config", "set", "no.such.key", "1")
	assert.Equal(t, ExitError, res.code)
}

// =============================================================================
// ASK AND SESSIONS
// =============================================================================

func TestAskRequiresAPIKey(t *testing.T) {
	isolate(t)
	res := run(t, nil, "ask", "hello")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "Tip:")
	assert.Contains(t, res.stderr, "OPENROUTER_API_KEY")
}

func TestAskStreamsReplyAndSaves(t *testing.T) {
	isolate(t)
	calls := withCompletions(t, "Here is ", "a navbar.")

	res := run(t, nil, "ask", "Build", "a", "navbar")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Here is a navbar.")
	assert.EqualValues(t, 1, calls.Load())

	res = run(t, nil, "sessions", "show", "--raw")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Build a navbar")
	assert.Contains(t, res.stdout, "Here is a navbar.")

	res = run(t, nil, "--json", "sessions", "list")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var resp struct {
		Data []sessionSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Current)
	assert.Equal(t, 2, resp.Data[0].Messages)
}

func TestAskJSON(t *testing.T) {
	isolate(t)
	withCompletions(t, "<p>hi</p>")

	res := run(t, nil, "--json", "ask", "--mode", "short", "hello")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var resp struct {
		Success bool      `json:"success"`
		Data    askResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "<p>hi</p>", resp.Data.Reply)
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.Equal(t, registry.Default().DefaultID(), resp.Data.Model)
}

func TestAskNewSession(t *testing.T) {
	isolate(t)
	withCompletions(t, "ok")

	require.Equal(t, ExitSuccess, run(t, nil, "ask", "first").code)
	res := run(t, nil, "ask", "--new", "second")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = run(t, nil, "--json", "sessions", "list")
	var resp struct {
		Data []sessionSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestAskInvalidMode(t *testing.T) {
	isolate(t)
	withCompletions(t, "ok")
	res := run(t, nil, "ask", "--mode", "verbose", "hello")
	assert.Equal(t, ExitError, res.code)
}

func TestSessionsRenameAndExport(t *testing.T) {
	isolate(t)
	withCompletions(t, "reply")
	require.Equal(t, ExitSuccess, run(t, nil, "ask", "hello").code)

	res := run(t, nil, "sessions", "rename", "1", "My", "page")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = run(t, nil, "sessions", "export", "1", "-f", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var sess model.Session
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &sess))
	assert.Equal(t, "My page", sess.Title)

	out := filepath.Join(t.TempDir(), "page.md")
	res = run(t, nil, "sessions", "export", "-o", out)
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.FileExists(t, out)
}

func TestSessionsDeleteAsksForConfirmation(t *testing.T) {
	isolate(t)
	withCompletions(t, "reply")
	require.Equal(t, ExitSuccess, run(t, nil, "ask", "hello").code)

	p := &fakePrompter{lines: []string{"n"}}
	res := run(t, p, "sessions", "delete", "1")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, ErrCancelled.Error())
	require.Len(t, p.asked, 1)
	assert.Contains(t, p.asked[0], "Are you sure")

	res = run(t, nil, "sessions", "delete", "1", "--yes")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	res = run(t, nil, "sessions", "show", "9")
	assert.Equal(t, ExitError, res.code)
}

func TestSessionsSyncWithoutRemote(t *testing.T) {
	isolate(t)
	res := run(t, nil, "sessions", "sync")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "CODECRAFT_REMOTE_URL")
}

// =============================================================================
// AUTH AND SERVE
// =============================================================================

// startDocstore runs a docstore on sqlite in its own temp dir and points
// CODECRAFT_REMOTE_URL at it.
func startDocstore(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := docstore.DefaultConfig(filepath.Join(t.TempDir(), "server", "docstore.db"))
	cfg.JWTSecret = "test-secret"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.AuthRateLimit = 0
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, mkdirFor(cfg.DSN))
	srv, err := docstore.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Setenv("CODECRAFT_REMOTE_URL", ts.URL)
	return ts
}

func TestAuthFlowAgainstDocstore(t *testing.T) {
	isolate(t)
	ts := startDocstore(t)

	p := &fakePrompter{password: "hunter22"}
	res := run(t, p, "auth", "signup", "--email", "ann@example.com", "--name", "Ann")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed up as ann@example.com")

	res = run(t, nil, "auth", "profile")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Ann")
	assert.Contains(t, res.stdout, ts.URL)

	res = run(t, nil, "sessions", "sync")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Synced with")

	res = run(t, nil, "auth", "signout")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Signed out.")

	res = run(t, nil, "auth", "signout")
	assert.Contains(t, res.stdout, "Not signed in.")
}

func TestOpenMergesRemoteBeforePushing(t *testing.T) {
	isolate(t)
	startDocstore(t)
	withCompletions(t, "ok")
	deviceA, deviceB, deviceC := t.TempDir(), t.TempDir(), t.TempDir()
	p := &fakePrompter{password: "hunter22"}

	on := func(home string, args ...string) result {
		t.Helper()
		t.Setenv("CODECRAFT_HOME", home)
		res := run(t, p, args...)
		require.Equal(t, ExitSuccess, res.code, res.stderr)
		return res
	}

	on(deviceA, "auth", "signup", "--email", "ann@example.com", "--name", "Ann")
	on(deviceA, "ask", "fromA")
	on(deviceB, "auth", "signin", "--email", "ann@example.com")
	on(deviceB, "ask", "--new", "fromB")
	// Device A is still signed in; opening it must pull fromB before its
	// own reply is pushed.
	on(deviceA, "ask", "againA")
	on(deviceC, "auth", "signin", "--email", "ann@example.com")

	data, err := os.ReadFile(filepath.Join(deviceC, storage.ChatsFile))
	require.NoError(t, err)
	for _, want := range []string{"fromA", "fromB", "againA"} {
		assert.Contains(t, string(data), want)
	}

	local, err := os.ReadFile(filepath.Join(deviceA, storage.ChatsFile))
	require.NoError(t, err)
	assert.Contains(t, string(local), "fromB")
}

func TestOpenWithUnreachableRemoteStaysLocal(t *testing.T) {
	isolate(t)
	ts := startDocstore(t)
	withCompletions(t, "ok")
	home := t.TempDir()
	t.Setenv("CODECRAFT_HOME", home)

	p := &fakePrompter{password: "hunter22"}
	res := run(t, p, "auth", "signup", "--email", "ann@example.com", "--name", "Ann")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	// The saved credentials now point at a server that is gone.
	ts.Close()
	res = run(t, nil, "ask", "offline")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	data, err := os.ReadFile(filepath.Join(home, storage.ChatsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "offline")
}

func TestAuthSignUpRejectsShortPassword(t *testing.T) {
	isolate(t)
	t.Setenv("CODECRAFT_REMOTE_URL", "http://127.0.0.1:1")
	p := &fakePrompter{password: "abc"}
	res := run(t, p, "auth", "signup", "--email", "a@b.co", "--name", "A")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, errShortPassword.Error())
}

func TestAuthWithoutRemoteURL(t *testing.T) {
	isolate(t)
	res := run(t, nil, "auth", "profile")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "remote.url")
}

func TestServeRequiresJWTSecret(t *testing.T) {
	isolate(t)
	res := run(t, nil, "serve")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "jwt_secret")
}

func mkdirFor(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0700)
}

// =============================================================================
// UNITS
// =============================================================================

func TestStreamPrinterRestart(t *testing.T) {
	var out, errw bytes.Buffer
	p := &streamPrinter{out: &out, errw: &errw}

	draft := func(text string) session.Event {
		return session.Event{Kind: session.EventDelta, Draft: session.Draft{Text: text}}
	}
	p.handle(draft("He"))
	p.handle(draft("Hello"))
	p.handle(session.Event{Kind: session.EventRestart})
	p.handle(draft("Hi"))

	assert.Equal(t, "HelloHi", out.String())
	assert.Contains(t, errw.String(), "retrying")

	printed, err := p.result()
	assert.True(t, printed)
	assert.NoError(t, err)
}

func TestStreamPrinterQuietAndCancel(t *testing.T) {
	var out bytes.Buffer
	p := &streamPrinter{out: &out, errw: io.Discard, quiet: true}
	p.handle(session.Event{Kind: session.EventDelta, Draft: session.Draft{Text: "x"}})
	p.handle(session.Event{Kind: session.EventCancelled})

	assert.Empty(t, out.String())
	_, err := p.result()
	var abort *cloud.AbortError
	assert.ErrorAs(t, err, &abort)
}

func TestErrorTip(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{cloud.ErrNotConfigured, "OPENROUTER_API_KEY"},
		{fmt.Errorf("x: %w", registry.ErrUnknownModel), "codecraft models"},
		{storage.ErrSessionNotFound, "sessions list"},
		{ErrNoRemoteURL, "remote.url"},
		{&TTYRequiredError{Operation: "prompt"}, "flag"},
		{errors.New("other"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			tip := ErrorTip(tt.err)
			if tt.want == "" {
				assert.Empty(t, tip)
				return
			}
			assert.Contains(t, tip, tt.want)
		})
	}
}

func TestDisplayErrorIncludesTip(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, cloud.ErrNotConfigured)
	assert.Contains(t, buf.String(), "Tip:")
}

func TestRequireConfirmation(t *testing.T) {
	assert.NoError(t, RequireConfirmation(&fakePrompter{}, true, "x"))
	assert.NoError(t, RequireConfirmation(&fakePrompter{lines: []string{"Y"}}, false, "x"))
	assert.ErrorIs(t, RequireConfirmation(&fakePrompter{lines: []string{""}}, false, "x"), ErrCancelled)
}

func TestJSONResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONErrorResponse("ask", errors.New("boom")).Write(&buf))

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "boom", *resp.Error)
	assert.Equal(t, "ask", resp.Command)
}
