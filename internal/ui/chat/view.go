// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/render"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/util"
)

const (
	headerHeight    = 1
	statusHeight    = 1
	inputHeight     = 5 // three text rows plus the border
	maxPopupEntries = 6
)

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	parts := []string{m.renderHeader(), m.viewport.View(), m.renderStatus()}
	if popup := m.renderCompletions(); popup != "" {
		parts = append(parts, popup)
	}
	parts = append(parts, m.theme.InputBorder.Width(m.width-2).Render(m.input.View()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m *Model) layout() {
	if !m.ready {
		return
	}
	popup := 0
	if m.completions.Visible {
		popup = min(len(m.completions.Completions), maxPopupEntries)
	}
	h := m.height - headerHeight - statusHeight - inputHeight - popup
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.SetWidth(m.width - 6)
}

// refresh re-renders the transcript into the viewport. follow keeps the
// view pinned to the bottom when it already was.
func (m *Model) refresh(follow bool) {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	if m.showHelp {
		m.viewport.SetContent(m.renderHelp())
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if follow || atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// HEADER AND STATUS
// =============================================================================

func (m Model) renderHeader() string {
	sess := m.ctrl.Current()
	modelName := m.currentModel()
	if mdl, err := m.models.Get(modelName); err == nil {
		modelName = mdl.Name
	}

	title := model.DefaultTitle
	if sess != nil {
		title = sess.Title
	}

	left := m.theme.HeaderBrand.Render("CodeCraft") + "  " +
		m.theme.HeaderModel.Render(modelName) + " " +
		m.theme.HeaderMeta.Render("· "+string(m.ctrl.Mode()))
	right := m.theme.HeaderMeta.Render(util.TruncateWidth(title, 40))
	if m.version != "" {
		right += m.theme.HeaderMeta.Render("  v" + m.version)
	}

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderStatus() string {
	var state string
	switch m.state {
	case session.Sending:
		state = m.theme.StateBusy.Render(m.spinner.View() + " Sending")
	case session.Streaming:
		state = m.theme.StateBusy.Render(m.spinner.View() + " Streaming")
	case session.Interrupted:
		state = m.theme.StateStall.Render("⏸ Stream paused")
	case session.Finalizing:
		state = m.theme.StateBusy.Render("Saving")
	default:
		state = m.theme.StateIdle.Render("● Ready")
	}

	var hints []string
	if m.state.Active() {
		hints = append(hints, m.shortcut("Esc", "stop"))
	}
	if m.ctrl.CanRetry() {
		hints = append(hints, m.shortcut("C-r", "retry"))
	}
	if m.ctrl.CanContinue() {
		hints = append(hints, m.shortcut("C-o", "continue"))
	}
	if len(hints) == 0 {
		hints = append(hints, m.help.ShortHelpView(m.keyMap.ShortHelp()))
	}
	return m.theme.StatusBar.Render(state + "  " + strings.Join(hints, "  "))
}

func (m Model) shortcut(k, desc string) string {
	return m.theme.ShortcutKey.Render(k) + " " + m.theme.Hint.Render(desc)
}

func (m Model) renderCompletions() string {
	cs := m.completions
	if !cs.Visible {
		return ""
	}
	start := 0
	if cs.Selected >= maxPopupEntries {
		start = cs.Selected - maxPopupEntries + 1
	}
	end := min(start+maxPopupEntries, len(cs.Completions))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		c := cs.Completions[i]
		style := m.theme.CompletionItem
		if i == cs.Selected {
			style = m.theme.CompletionSelected
		}
		line := style.Render(util.PadWidth(c.Display, 24))
		if c.Description != "" {
			line += " " + m.theme.CompletionDesc.Render(util.TruncateWidth(c.Description, m.width-30))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	sess := m.ctrl.Current()
	if sess == nil {
		return ""
	}
	width := m.theme.ContentWidth(m.width)
	m.cache.reset(sess.ID, width, m.theme.IsDark)
	m.cache.truncate(len(sess.Messages))

	draft, streaming := m.draft, m.busy && m.draft.SessionID == sess.ID
	messages := sess.Messages
	if streaming && draft.Replaces && len(messages) > 0 {
		// The draft already contains the committed partial reply.
		messages = messages[:len(messages)-1]
	}

	var blocks []string
	if len(messages) == 0 && !streaming {
		blocks = append(blocks, m.renderWelcome(sess))
	}
	for i, msg := range messages {
		blocks = append(blocks, m.cache.get(i, msg, func(msg model.Message) string {
			return m.renderMessage(msg, sess.Model, width)
		}))
	}
	if streaming {
		blocks = append(blocks, m.renderDraft(draft, sess.Model, width))
	}
	for _, n := range m.notes {
		blocks = append(blocks, m.renderNote(n, width))
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

func (m Model) renderMessage(msg model.Message, modelKey string, width int) string {
	stamp := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))
	switch msg.Role {
	case model.RoleUser:
		return m.theme.UserLabel.Render("You") + " " + stamp + "\n" +
			m.theme.UserText.Width(width).Render(msg.Content)
	case model.RoleAssistant:
		return m.theme.AssistantLabel.Render(m.modelName(modelKey)) + " " + stamp + "\n" +
			m.theme.AssistantText.Width(width).Render(m.renderReply(msg.Content, width))
	default:
		return m.theme.Notice.Width(width).Render("⚠ " + msg.Content)
	}
}

// renderReply runs the reply through the fenced-code renderer.
func (m Model) renderReply(text string, width int) string {
	return render.Document(text, render.NewTerminalFormatter(), render.NewTerminalCodeRenderer(width-2))
}

func (m Model) renderDraft(d session.Draft, modelKey string, width int) string {
	label := m.theme.AssistantLabel.Render(m.modelName(modelKey))
	content := d.Content()
	if content == "" {
		return label + "\n" + m.theme.AssistantText.Render(m.spinner.View()+" Thinking...")
	}

	body := m.renderReply(content, width) + m.theme.Cursor.Render("▌")
	if d.Stalled {
		body += "\n" + m.theme.StateStall.Render("No data for a while. Waiting, or press C-o to continue from here.")
	}
	return label + "\n" + m.theme.AssistantText.Width(width).Render(body)
}

func (m Model) renderNote(n note, width int) string {
	if n.kind == noteError {
		out := m.theme.ErrorTitle.Render("✗ " + n.text)
		if n.tip != "" {
			out += "\n" + m.theme.ErrorTip.Render(n.tip)
		}
		return m.theme.System.Width(width).Render(out)
	}
	text := n.text
	if n.tip != "" {
		text += "\n" + m.theme.ErrorTip.Render(n.tip)
	}
	return m.theme.System.Width(width).Render(text)
}

func (m Model) renderWelcome(sess *model.Session) string {
	key := sess.Model
	if !m.models.Has(key) {
		key = m.models.DefaultID()
	}
	show := registry.Examples(key)
	if len(show.Examples) == 0 {
		return m.theme.WelcomeHeading.Render("Start a conversation")
	}

	var sb strings.Builder
	sb.WriteString(m.theme.WelcomeHeading.Render(show.Heading) + "\n")
	if show.Summary != "" {
		sb.WriteString(m.theme.Hint.Render(show.Summary) + "\n\n")
	}
	for i, ex := range show.Examples {
		sb.WriteString(m.theme.WelcomeItem.Render(fmt.Sprintf("  %d. %s", i+1, ex.Title)) +
			m.theme.Hint.Render(" - "+ex.Description) + "\n")
	}
	sb.WriteString("\n" + m.theme.Hint.Render("Type /examples <number> to try one, or /help for commands."))
	return sb.String()
}

func (m Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(m.theme.WelcomeHeading.Render("Commands") + "\n")
	sb.WriteString(m.helpText + "\n\n")
	sb.WriteString(m.theme.WelcomeHeading.Render("Keys") + "\n")
	sb.WriteString(m.help.FullHelpView(m.keyMap.FullHelp()) + "\n\n")
	sb.WriteString(m.theme.Hint.Render("Esc or F1 to close"))
	return sb.String()
}

func (m Model) modelName(key string) string {
	if mdl, err := m.models.Get(key); err == nil {
		return mdl.Name
	}
	if mdl, err := m.models.Get(m.models.DefaultID()); err == nil {
		return mdl.Name
	}
	return "Assistant"
}
