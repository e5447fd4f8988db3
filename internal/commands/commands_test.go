// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/preview"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

// cannedCompleter answers every request with the same reply.
type cannedCompleter struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (c *cannedCompleter) Complete(ctx context.Context, req cloud.Request) *cloud.StreamHandle {
	c.mu.Lock()
	reply := c.reply
	if n := len(req.History); n > 0 {
		c.prompts = append(c.prompts, req.History[n-1].Content)
	}
	c.mu.Unlock()

	h := cloud.NewStreamHandle(ctx)
	go func() {
		if !h.Emit(cloud.Event{Kind: cloud.EventDelta, Text: reply}) {
			h.Finish("", &cloud.AbortError{Err: ctx.Err()})
			return
		}
		h.Finish(reply, nil)
	}()
	return h
}

func (c *cannedCompleter) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

type previewCall struct {
	lang, code string
	device     preview.Device
}

type env struct {
	reg       *Registry
	ctx       *Context
	ctrl      *session.Controller
	store     *storage.Store
	client    *cannedCompleter
	clipboard []string
	previews  []previewCall
}

func newEnv(t *testing.T) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	scfg := storage.DefaultConfig(t.TempDir())
	scfg.Logger = logger
	store, err := storage.Open(scfg)
	require.NoError(t, err)

	e := &env{store: store, client: &cannedCompleter{reply: "Hello"}}
	cfg := session.DefaultConfig()
	cfg.Logger = logger
	models := registry.Default()
	e.ctrl = session.New(store, e.client, models, cfg)
	t.Cleanup(e.ctrl.Close)

	e.reg = NewRegistry()
	e.ctx = NewContext(e.ctrl, models, e.reg)
	e.ctx.ExportDir = t.TempDir()
	e.ctx.Clipboard = func(text string) error {
		e.clipboard = append(e.clipboard, text)
		return nil
	}
	e.ctx.Preview = func(lang, code string, d preview.Device) (string, error) {
		e.previews = append(e.previews, previewCall{lang, code, d})
		return "/tmp/preview.html", nil
	}
	return e
}

func (e *env) run(t *testing.T, input string) tea.Msg {
	t.Helper()
	msg, err := e.reg.Run(e.ctx, input)
	require.NoError(t, err, input)
	return msg
}

func (e *env) say(t *testing.T, input string) string {
	t.Helper()
	msg := e.run(t, input)
	out, ok := msg.(SystemMessageMsg)
	require.True(t, ok, "%s: got %T %+v", input, msg, msg)
	return out.Content
}

func (e *env) fail(t *testing.T, input string) ErrorMsg {
	t.Helper()
	msg := e.run(t, input)
	out, ok := msg.(ErrorMsg)
	require.True(t, ok, "%s: got %T %+v", input, msg, msg)
	return out
}

// converse sends text and waits for the reply to be committed.
func (e *env) converse(t *testing.T, text, reply string) {
	t.Helper()
	e.client.mu.Lock()
	e.client.reply = reply
	e.client.mu.Unlock()

	require.NoError(t, e.ctrl.Send(text))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.ctrl.WaitIdle(ctx))
	e.ctrl.Drain()
}

const codeReply = "Here you go.\n```html\n<h1>Hi</h1>\n```\nAnd the logic:\n```go\nfmt.Println(1)\n```\n"

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/model gemma", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
		{"/", true},
	}

	for _, tc := range tests {
		if got := IsCommand(tc.input); got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestExtractCommandName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/help", "/help"},
		{"/model gemma", "/model"},
		{"  /rename  my chat ", "/rename"},
		{"hello", ""},
		{"/", "/"},
	}

	for _, tc := range tests {
		if got := ExtractCommandName(tc.input); got != tc.want {
			t.Errorf("ExtractCommandName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"one two", []string{"one", "two"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{`"quoted words" next`, []string{"quoted words", "next"}},
		{`'single quoted'`, []string{"single quoted"}},
		{`"say \"hi\""`, []string{`say "hi"`}},
		{`""`, []string{""}},
		{"héllo wörld", []string{"héllo", "wörld"}},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseArgs(tc.input), "ParseArgs(%q)", tc.input)
	}
}

func TestParseResolvesAliases(t *testing.T) {
	r := NewRegistry()

	res := r.Parse("/Q")
	assert.True(t, res.IsCommand)
	require.NotNil(t, res.Command)
	assert.Equal(t, "/quit", res.Command.Name)

	res = r.Parse(`/rename "Landing page" v2`)
	require.NotNil(t, res.Command)
	assert.Equal(t, []string{"Landing page", "v2"}, res.Args)
	assert.Equal(t, `"Landing page" v2`, res.RawArgs)

	assert.False(t, r.Parse("hi").IsCommand)
}

func TestExecuteErrors(t *testing.T) {
	e := newEnv(t)

	_, err := e.reg.Execute(e.ctx, "hello")
	assert.ErrorIs(t, err, ErrNotCommand)

	_, err = e.reg.Execute(e.ctx, "/bogus")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = e.reg.Execute(e.ctx, "/switch")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "session", verr.Arg)

	_, err = e.reg.Execute(e.ctx, "/font huge")
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "huge", verr.Got)
}

func TestEveryCommandHasHandler(t *testing.T) {
	for _, cmd := range NewRegistry().All() {
		assert.NotNil(t, cmd.Handler, cmd.Name)
		assert.Contains(t, Categories(), cmd.Category, cmd.Name)
	}
}

func TestFormatHelp(t *testing.T) {
	r := NewRegistry()

	all := FormatHelp(r, "")
	for _, cat := range Categories() {
		assert.Contains(t, all, cat+":")
	}
	assert.Contains(t, all, "/preview [#] [device]")

	one := FormatHelp(r, "model")
	assert.True(t, strings.HasPrefix(one, "/model [name]"))
	assert.Contains(t, one, "Aliases: /m")

	cat := FormatHelp(r, "code")
	assert.Contains(t, cat, "/copy")
	assert.NotContains(t, cat, "/quit")

	assert.Contains(t, FormatHelp(r, "nope"), "No help")
}

// =============================================================================
// HANDLER TESTS
// =============================================================================

func TestNewSwitchAndDelete(t *testing.T) {
	e := newEnv(t)
	first := e.store.CurrentID()

	e.converse(t, "hi", "Hello")
	out := e.say(t, "/new")
	assert.Contains(t, out, "Started conversation")
	second := e.store.CurrentID()
	require.NotEqual(t, first, second)

	// Newest first, so #2 is the original conversation.
	e.say(t, "/switch 2")
	assert.Equal(t, first, e.store.CurrentID())

	e.say(t, "/switch "+second)
	assert.Equal(t, second, e.store.CurrentID())

	msg := e.fail(t, "/switch 99")
	assert.Equal(t, "Unknown conversation", msg.Title)

	e.say(t, "/delete "+first)
	assert.False(t, e.store.Has(first))
}

func TestRenameAndSessions(t *testing.T) {
	e := newEnv(t)
	e.say(t, `/rename "Landing page"`)
	assert.Equal(t, "Landing page", e.ctrl.Current().Title)

	list := e.say(t, "/sessions")
	assert.Contains(t, list, "Landing page")

	found := e.say(t, "/sessions landing")
	assert.Contains(t, found, "Landing page")
	assert.Contains(t, e.say(t, "/sessions zebra"), "No conversations match")
}

func TestClearNeedsConfirmation(t *testing.T) {
	e := newEnv(t)
	e.converse(t, "hi", "Hello")
	e.say(t, "/new")
	require.Equal(t, 2, e.store.Len())

	msg := e.fail(t, "/clear")
	assert.Contains(t, msg.Tip, "/clear confirm")
	assert.Equal(t, 2, e.store.Len())

	e.say(t, "/clear confirm")
	assert.Equal(t, 1, e.store.Len())
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	e.converse(t, "hi", "Hello")

	path := filepath.Join(t.TempDir(), "chat.json")
	assert.Contains(t, e.say(t, "/export json "+path), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	assert.Contains(t, string(data), e.store.CurrentID())

	out := e.say(t, "/export")
	assert.Contains(t, out, filepath.Join(e.ctx.ExportDir, "codecraft-"+e.store.CurrentID()+".md"))

	_, err = Export(e.ctrl.Current(), "pdf")
	assert.Error(t, err)
}

func TestRequestCommandsWhenIdle(t *testing.T) {
	e := newEnv(t)

	msg := e.fail(t, "/retry")
	assert.Equal(t, "Cannot retry", msg.Title)

	msg = e.fail(t, "/continue")
	assert.Contains(t, msg.Tip, "interrupted")

	assert.Equal(t, "Nothing to cancel.", e.say(t, "/cancel"))
}

func TestModelAndMode(t *testing.T) {
	e := newEnv(t)

	list := e.say(t, "/model")
	assert.Contains(t, list, "* deepseek")
	assert.Contains(t, list, "gemma")

	assert.Equal(t, "Switched to Gemma", e.say(t, "/model Gemma"))
	assert.Equal(t, "gemma", e.ctrl.Current().Model)
	assert.Equal(t, "gemma", e.store.Preferences().Model)

	msg := e.fail(t, "/model gpt")
	assert.Contains(t, msg.Tip, "deepseek")

	e.say(t, "/mode long")
	assert.Equal(t, registry.ModeLong, e.ctrl.Mode())
	assert.Contains(t, e.say(t, "/mode"), "long")

	_, err := e.reg.Execute(e.ctx, "/mode huge")
	assert.Error(t, err)
}

func TestExamples(t *testing.T) {
	e := newEnv(t)

	list := e.say(t, "/examples")
	assert.Contains(t, list, "1. Modern Landing")

	msg := e.run(t, "/examples 1")
	sent, ok := msg.(PromptSentMsg)
	require.True(t, ok, "got %T", msg)
	assert.Contains(t, sent.Prompt, "SaaS landing page")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.ctrl.WaitIdle(ctx))
	assert.Equal(t, sent.Prompt, e.client.lastPrompt())

	e.fail(t, "/examples 42")
}

func TestBlocksCopyAndPreview(t *testing.T) {
	e := newEnv(t)

	e.fail(t, "/copy")
	e.converse(t, "build it", codeReply)

	blocks := e.say(t, "/blocks")
	assert.Contains(t, blocks, "1. HTML")
	assert.Contains(t, blocks, "(preview)")
	assert.Contains(t, blocks, "2. Go")

	e.say(t, "/copy")
	e.say(t, "/copy 1")
	e.say(t, "/copy all")
	require.Len(t, e.clipboard, 3)
	assert.Equal(t, "fmt.Println(1)", e.clipboard[0])
	assert.Equal(t, "<h1>Hi</h1>", e.clipboard[1])
	assert.Equal(t, codeReply, e.clipboard[2])

	e.fail(t, "/copy 7")

	out := e.say(t, "/preview mobile")
	assert.Contains(t, out, "Mobile (375x667)")
	require.Len(t, e.previews, 1)
	assert.Equal(t, "html", e.previews[0].lang)
	assert.Equal(t, "<h1>Hi</h1>", e.previews[0].code)
	assert.Equal(t, "mobile", e.previews[0].device.Name)

	e.say(t, "/preview 1")
	assert.Equal(t, "desktop", e.previews[1].device.Name)

	e.fail(t, "/preview watch")
}

func TestPreviewWithoutPreviewableBlock(t *testing.T) {
	e := newEnv(t)
	e.converse(t, "go", "```go\nx := 1\n```")
	msg := e.fail(t, "/preview")
	assert.Contains(t, msg.Message, "only html, css and javascript")
}

func TestCopyWholeReplyWithoutBlocks(t *testing.T) {
	e := newEnv(t)
	e.converse(t, "hi", "Just prose.")
	assert.Equal(t, "Copied reply to the clipboard", e.say(t, "/copy"))
	assert.Equal(t, []string{"Just prose."}, e.clipboard)
}

func TestSettings(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, "Theme: light", e.say(t, "/theme"))
	msg := e.run(t, "/theme dark")
	changed, ok := msg.(SettingsChangedMsg)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, storage.ThemeDark, changed.Settings.Theme)
	assert.Equal(t, storage.ThemeDark, e.store.Preferences().Settings.Theme)

	e.run(t, "/font large")
	assert.Equal(t, storage.FontLarge, e.store.Preferences().Settings.FontSize)
}

func TestSyncWithoutRemote(t *testing.T) {
	e := newEnv(t)
	msg := e.fail(t, "/sync")
	assert.Equal(t, "Not signed in", msg.Title)
}

func TestHelpAndQuit(t *testing.T) {
	e := newEnv(t)

	msg := e.run(t, "/help model")
	assert.Equal(t, ShowHelpMsg{Topic: "model"}, msg)

	msg = e.run(t, "/quit")
	assert.IsType(t, tea.QuitMsg{}, msg)
}
