// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/commands"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/ui/styles"
)

// ReloadedMsg tells the screen that another process changed the store.
type ReloadedMsg struct{}

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refresh(true)
		return m, nil

	case session.EventMsg:
		return m.handleEvent(session.Event(msg))

	case ReloadedMsg:
		m.syncController()
		m.refresh(false)
		return m, nil

	case spinner.TickMsg:
		if !m.state.Active() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh(false)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	// Command results
	case commands.SystemMessageMsg:
		m.addNote(note{kind: noteInfo, text: msg.Content})
		m.refresh(true)
		return m, nil

	case commands.ErrorMsg:
		m.addNote(note{kind: noteError, text: msg.Error(), tip: msg.Tip})
		m.refresh(true)
		return m, nil

	case commands.ShowHelpMsg:
		m.showHelp = true
		m.helpText = commands.FormatHelp(m.cmds, msg.Topic)
		m.refresh(false)
		m.viewport.GotoTop()
		return m, nil

	case commands.SettingsChangedMsg:
		m.theme = styles.NewTheme(msg.Settings)
		m.theme.Apply()
		m.spinner.Style = m.theme.Spinner
		m.layout()
		m.refresh(true)
		return m, nil

	case commands.PromptSentMsg:
		m.notes = nil
		m.input.Reset()
		m.refresh(true)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// CONTROLLER EVENTS
// =============================================================================

func (m Model) handleEvent(ev session.Event) (tea.Model, tea.Cmd) {
	wasActive := m.state.Active()
	m.syncController()

	switch ev.Kind {
	case session.EventSessions:
		m.notes = nil
		m.showHelp = false
	case session.EventFailed:
		// Transport failures leave a notice in the conversation itself.
		var te *cloud.TransportError
		if ev.Err != nil && !errors.As(ev.Err, &te) {
			m.addNote(note{kind: noteError, text: ev.Err.Error()})
		}
	}

	m.refresh(true)
	cmds := []tea.Cmd{session.WaitForEvent(m.events)}
	if m.state.Active() && !wasActive {
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

// syncController copies the controller's state and draft.
func (m *Model) syncController() {
	m.state = m.ctrl.State()
	m.draft, m.busy = m.ctrl.Draft()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		if m.ctrl.Cancel() {
			return m, nil
		}
		m.quitting = true
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Cancel):
		switch {
		case m.completions.Visible:
			m.completions.Clear()
			m.layout()
		case m.showHelp:
			m.showHelp = false
			m.refresh(true)
		default:
			m.ctrl.Cancel()
		}
		return m, nil

	case key.Matches(msg, m.keyMap.Complete):
		m.complete(false)
		return m, nil

	case key.Matches(msg, m.keyMap.PrevChoice):
		m.complete(true)
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.submit()

	case key.Matches(msg, m.keyMap.Newline):
		m.input.InsertString("\n")
		return m, nil

	case key.Matches(msg, m.keyMap.Retry):
		return m.report(m.ctrl.Retry())

	case key.Matches(msg, m.keyMap.Continue):
		return m.report(m.ctrl.Continue())

	case key.Matches(msg, m.keyMap.NextModel):
		return m.runCommand("/model " + m.models.Next(m.currentModel()))

	case key.Matches(msg, m.keyMap.CycleMode):
		return m.runCommand("/mode " + string(m.ctrl.Mode().Next()))

	case key.Matches(msg, m.keyMap.NewChat):
		return m.runCommand("/new")

	case key.Matches(msg, m.keyMap.Copy):
		return m.runCommand("/copy")

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keyMap.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		m.helpText = commands.FormatHelp(m.cmds, "")
		m.refresh(!m.showHelp)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.completions.Visible {
		m.updateCompletions()
	}
	return m, cmd
}

// submit sends the input, runs it as a command, or accepts the selected
// completion for a half-typed command name.
func (m Model) submit() (tea.Model, tea.Cmd) {
	value := m.input.Value()
	if m.completions.Visible && !strings.ContainsAny(strings.TrimSpace(value), " \t") {
		m.acceptCompletion()
		value = m.input.Value()
	}
	m.completions.Clear()
	m.layout()

	text := strings.TrimSpace(value)
	if text == "" {
		return m, nil
	}
	if commands.IsCommand(text) {
		m.input.Reset()
		return m.runCommand(text)
	}

	err := m.ctrl.Send(text)
	switch {
	case errors.Is(err, session.ErrBusy):
		m.addNote(note{kind: noteInfo, text: "Reply stopped. Press Enter again to send."})
	case err != nil:
		m.addNote(note{kind: noteError, text: err.Error()})
	default:
		m.notes = nil
		m.showHelp = false
		m.input.Reset()
	}
	m.refresh(true)
	return m, nil
}

func (m Model) runCommand(input string) (tea.Model, tea.Cmd) {
	cmd, err := m.cmds.Execute(m.cmdCtx, input)
	if err != nil {
		tip := ""
		if errors.Is(err, commands.ErrUnknownCommand) {
			tip = "Type /help for the command list"
		}
		m.addNote(note{kind: noteError, text: err.Error(), tip: tip})
		m.refresh(true)
		return m, nil
	}
	if cmd != nil {
		// Quitting through a command still has to release the subscription.
		return m, func() tea.Msg {
			msg := cmd()
			if _, ok := msg.(tea.QuitMsg); ok {
				m.Close()
			}
			return msg
		}
	}
	return m, nil
}

func (m Model) report(err error) (tea.Model, tea.Cmd) {
	if err != nil {
		m.addNote(note{kind: noteError, text: err.Error()})
		m.refresh(true)
	}
	return m, nil
}

func (m *Model) addNote(n note) {
	m.notes = append(m.notes, n)
	if len(m.notes) > maxNotes {
		m.notes = m.notes[len(m.notes)-maxNotes:]
	}
}

// =============================================================================
// COMPLETION
// =============================================================================

func (m *Model) complete(backwards bool) {
	value := m.input.Value()
	if !commands.IsCommand(value) {
		return
	}
	if m.completions.Visible && m.completions.OriginalInput == value {
		if backwards {
			m.completions.Prev()
		} else {
			m.completions.Next()
		}
		return
	}
	m.updateCompletions()
	if len(m.completions.Completions) == 1 {
		m.acceptCompletion()
	}
}

func (m *Model) updateCompletions() {
	value := m.input.Value()
	if !commands.IsCommand(value) {
		m.completions.Clear()
	} else {
		m.completions.Update(value, m.completer.Complete(value, len(value)))
	}
	m.layout()
}

func (m *Model) acceptCompletion() {
	m.input.SetValue(m.completions.Accept())
	m.input.CursorEnd()
	m.completions.Clear()
	m.layout()
}

func (m Model) currentModel() string {
	if sess := m.ctrl.Current(); sess != nil && m.models.Has(sess.Model) {
		return sess.Model
	}
	return m.models.DefaultID()
}
