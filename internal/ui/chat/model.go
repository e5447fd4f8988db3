// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/codecraft-tui/internal/commands"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires the chat screen to the application.
type Options struct {
	Controller *session.Controller
	Models     *registry.Registry
	Commands   *commands.Registry

	// CommandContext runs slash commands. Nil builds one from the fields
	// above.
	CommandContext *commands.Context

	Theme   *styles.Theme
	Version string

	// EventBuffer sizes the controller event channel (default 256).
	EventBuffer int
}

// =============================================================================
// MODEL
// =============================================================================

// noteKind classifies command output shown below the conversation.
type noteKind int

const (
	noteInfo noteKind = iota
	noteError
)

type note struct {
	kind noteKind
	text string
	tip  string
}

// maxNotes caps how much command output is kept on screen.
const maxNotes = 4

// Model is the Bubble Tea model for the chat screen. It renders the
// controller's current session plus the in-flight draft and forwards input
// to the controller or the command registry.
type Model struct {
	ctrl     *session.Controller
	models   *registry.Registry
	cmds     *commands.Registry
	cmdCtx   *commands.Context
	theme    *styles.Theme
	version  string
	keyMap   KeyMap
	events   <-chan session.Event
	unsub    func()
	cache    *renderCache
	quitting bool

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	completer   *commands.Completer
	completions *commands.CompletionState

	// state mirrors the controller, updated from events.
	state session.State
	draft session.Draft
	busy  bool

	notes    []note
	showHelp bool
	helpText string
}

// New creates the chat screen. The controller subscription starts here;
// call Close when the program exits.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(opts.Controller.Store().Preferences().Settings)
	}
	if opts.Commands == nil {
		opts.Commands = commands.NewRegistry()
	}
	if opts.CommandContext == nil {
		opts.CommandContext = commands.NewContext(opts.Controller, opts.Models, opts.Commands)
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	opts.Theme.Apply()

	ta := textarea.New()
	ta.Placeholder = "Ask anything, or type / for commands"
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetEnabled(false)
	ta.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    time.Second / 12,
	}
	sp.Style = opts.Theme.Spinner

	completer := commands.NewCompleter(opts.Commands)
	completer.Models = opts.Models
	completer.SessionsFn = opts.Controller.Store().List

	events, unsub := opts.Controller.Channel(opts.EventBuffer)

	return Model{
		ctrl:        opts.Controller,
		models:      opts.Models,
		cmds:        opts.Commands,
		cmdCtx:      opts.CommandContext,
		theme:       opts.Theme,
		version:     opts.Version,
		keyMap:      DefaultKeyMap(),
		events:      events,
		unsub:       unsub,
		cache:       &renderCache{},
		viewport:    vp,
		input:       ta,
		spinner:     sp,
		help:        help.New(),
		completer:   completer,
		completions: commands.NewCompletionState(),
		state:       opts.Controller.State(),
	}
}

// Init starts listening for controller events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(session.WaitForEvent(m.events), textarea.Blink)
}

// Close unsubscribes from the controller.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

// State returns the last observed controller state.
func (m Model) State() session.State {
	return m.state
}
