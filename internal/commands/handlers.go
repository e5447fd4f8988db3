// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/preview"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/render"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/storage"
	"github.com/jeranaias/codecraft-tui/internal/util"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// These messages are produced by command handlers for the front end.

// ShowHelpMsg triggers the help display.
type ShowHelpMsg struct {
	Topic string
}

// SystemMessageMsg is command output to show in the chat.
type SystemMessageMsg struct {
	Content string
}

// ErrorMsg reports a command that could not run.
type ErrorMsg struct {
	Title   string
	Message string
	Tip     string
}

func (e ErrorMsg) Error() string {
	if e.Message == "" {
		return e.Title
	}
	return e.Title + ": " + e.Message
}

// SettingsChangedMsg carries the display settings after /theme or /font.
type SettingsChangedMsg struct {
	Settings storage.Settings
}

// PromptSentMsg reports a prompt submitted on the user's behalf.
type PromptSentMsg struct {
	Prompt string
}

func output(format string, args ...any) tea.Cmd {
	content := fmt.Sprintf(format, args...)
	return func() tea.Msg { return SystemMessageMsg{Content: content} }
}

func failure(title string, err error, tip string) tea.Cmd {
	msg := ErrorMsg{Title: title, Tip: tip}
	if err != nil {
		msg.Message = err.Error()
	}
	return func() tea.Msg { return msg }
}

// =============================================================================
// CONVERSATION
// =============================================================================

// HandleNew starts a new conversation.
func HandleNew(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		sess, err := ctx.Controller.NewSession()
		if err != nil {
			return ErrorMsg{Title: "Could not start a conversation", Message: err.Error()}
		}
		return SystemMessageMsg{Content: "Started conversation " + sess.ID}
	}
}

// HandleSessions lists conversations, newest first.
func HandleSessions(ctx *Context, args []string) tea.Cmd {
	store := ctx.Controller.Store()
	query := strings.Join(args, " ")
	return func() tea.Msg {
		if query != "" {
			found := store.Search(query)
			if len(found) == 0 {
				return SystemMessageMsg{Content: fmt.Sprintf("No conversations match %q.", query)}
			}
			return SystemMessageMsg{Content: storage.FormatSessionList(found, store.CurrentID()) +
				"\nSwitch by ID: numbers refer to the full list."}
		}
		return SystemMessageMsg{Content: storage.FormatSessionList(store.List(), store.CurrentID())}
	}
}

// HandleSwitch makes another conversation current.
func HandleSwitch(ctx *Context, args []string) tea.Cmd {
	id, err := ResolveSession(ctx.Controller.Store(), args[0])
	if err != nil {
		return failure("Unknown conversation", err, "List them with /sessions")
	}
	return func() tea.Msg {
		if err := ctx.Controller.Switch(id); err != nil {
			return ErrorMsg{Title: "Could not switch", Message: err.Error()}
		}
		sess := ctx.Controller.Current()
		return SystemMessageMsg{Content: fmt.Sprintf("Switched to %q", sess.Title)}
	}
}

// HandleRename retitles the current conversation.
func HandleRename(ctx *Context, args []string) tea.Cmd {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		return failure("Missing title", nil, "Usage: /rename <title>")
	}
	store := ctx.Controller.Store()
	return func() tea.Msg {
		if err := store.Rename(store.CurrentID(), title); err != nil {
			return ErrorMsg{Title: "Could not rename", Message: err.Error()}
		}
		return SystemMessageMsg{Content: fmt.Sprintf("Renamed to %q", title)}
	}
}

// HandleDelete removes a conversation, the current one by default.
func HandleDelete(ctx *Context, args []string) tea.Cmd {
	store := ctx.Controller.Store()
	id := store.CurrentID()
	if len(args) > 0 {
		var err error
		if id, err = ResolveSession(store, args[0]); err != nil {
			return failure("Unknown conversation", err, "List them with /sessions")
		}
	}
	return func() tea.Msg {
		if err := ctx.Controller.Delete(id); err != nil {
			return ErrorMsg{Title: "Could not delete", Message: err.Error()}
		}
		return SystemMessageMsg{Content: "Deleted conversation " + id}
	}
}

// HandleClear deletes all history once confirmed.
func HandleClear(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 || args[0] != "confirm" {
		return failure("Clear all conversations?", nil, "This cannot be undone. Type /clear confirm")
	}
	return func() tea.Msg {
		if _, err := ctx.Controller.ClearAll(); err != nil {
			return ErrorMsg{Title: "Could not clear history", Message: err.Error()}
		}
		return SystemMessageMsg{Content: "All conversations deleted."}
	}
}

// ExportFormats lists the /export formats.
func ExportFormats() []string {
	return []string{"md", "html", "json"}
}

// HandleExport writes the current conversation to a file.
func HandleExport(ctx *Context, args []string) tea.Cmd {
	format := "md"
	if len(args) > 0 {
		format = strings.ToLower(args[0])
	}
	path := ""
	if len(args) > 1 {
		path = args[1]
	}

	return func() tea.Msg {
		sess := ctx.Controller.Current()
		if sess == nil {
			return ErrorMsg{Title: "Nothing to export"}
		}
		data, err := Export(sess, format)
		if err != nil {
			return ErrorMsg{Title: "Export failed", Message: err.Error()}
		}
		if path == "" {
			path = filepath.Join(ctx.ExportDir, "codecraft-"+sess.ID+"."+format)
		}
		if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
			return ErrorMsg{Title: "Export failed", Message: err.Error()}
		}
		return SystemMessageMsg{Content: "Exported to " + path}
	}
}

// Export renders a session in one of ExportFormats.
func Export(sess *model.Session, format string) ([]byte, error) {
	switch format {
	case "md", "markdown":
		return []byte(storage.ExportMarkdown(sess)), nil
	case "html":
		doc, err := storage.ExportHTML(sess)
		if err != nil {
			return nil, err
		}
		return []byte(doc), nil
	case "json":
		return storage.ExportJSON(sess)
	}
	return nil, fmt.Errorf("unknown export format %q (want %s)", format, strings.Join(ExportFormats(), ", "))
}

// =============================================================================
// REQUESTS
// =============================================================================

// HandleRetry replays the last failed request.
func HandleRetry(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		if err := ctx.Controller.Retry(); err != nil {
			return requestError("Cannot retry", err)
		}
		return nil
	}
}

// HandleContinue extends an interrupted or cut-off reply.
func HandleContinue(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		if err := ctx.Controller.Continue(); err != nil {
			return requestError("Cannot continue", err)
		}
		return nil
	}
}

// HandleCancel abandons the streaming reply.
func HandleCancel(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		if !ctx.Controller.Cancel() {
			return SystemMessageMsg{Content: "Nothing to cancel."}
		}
		return nil
	}
}

func requestError(title string, err error) ErrorMsg {
	msg := ErrorMsg{Title: title, Message: err.Error()}
	switch {
	case errors.Is(err, session.ErrBusy):
		msg.Tip = "Wait for the reply or /cancel it"
	case errors.Is(err, session.ErrNothingToContinue):
		msg.Tip = "Only interrupted or cut-off replies can be continued"
	}
	return msg
}

// =============================================================================
// MODEL
// =============================================================================

// HandleModel shows the models or switches the current conversation's.
func HandleModel(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		return func() tea.Msg {
			return SystemMessageMsg{Content: FormatModels(ctx.Models, currentModel(ctx))}
		}
	}
	name := strings.Join(args, " ")
	return func() tea.Msg {
		key, err := ctx.Controller.SetModel(name)
		if err != nil {
			return ErrorMsg{Title: "Unknown model", Message: err.Error(), Tip: "Available: " + strings.Join(ctx.Models.IDs(), ", ")}
		}
		m, _ := ctx.Models.Get(key)
		return SystemMessageMsg{Content: "Switched to " + m.Name}
	}
}

// FormatModels lists the registry, marking current.
func FormatModels(models *registry.Registry, current string) string {
	var sb strings.Builder
	sb.WriteString("Models:\n")
	for _, m := range models.List() {
		mark := "  "
		if m.Key == current {
			mark = "* "
		}
		fmt.Fprintf(&sb, "  %s%-10s %-10s %s (%d tokens)\n", mark, m.Key, m.Name, m.ID, m.MaxTokens)
	}
	return sb.String()
}

func currentModel(ctx *Context) string {
	if sess := ctx.Controller.Current(); sess != nil && ctx.Models.Has(sess.Model) {
		return sess.Model
	}
	return ctx.Models.DefaultID()
}

// HandleMode shows or sets the verbosity mode.
func HandleMode(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		return output("Response length: %s (options: %s)", ctx.Controller.Mode(), strings.Join(modeNames(), ", "))
	}
	mode, err := registry.ParseMode(args[0])
	if err != nil {
		return failure("Unknown mode", err, "Options: "+strings.Join(modeNames(), ", "))
	}
	return func() tea.Msg {
		if err := ctx.Controller.SetVerbosity(mode); err != nil {
			return ErrorMsg{Title: "Could not set mode", Message: err.Error()}
		}
		return SystemMessageMsg{Content: "Response length set to " + string(mode)}
	}
}

// HandleExamples lists the current model's example prompts, or sends the
// numbered one.
func HandleExamples(ctx *Context, args []string) tea.Cmd {
	showcase := registry.Examples(currentModel(ctx))
	if len(showcase.Examples) == 0 {
		return output("No examples for this model.")
	}
	if len(args) == 0 {
		return output("%s", FormatExamples(showcase))
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(showcase.Examples) {
		return failure("Unknown example", fmt.Errorf("want 1-%d, got %q", len(showcase.Examples), args[0]), "")
	}
	prompt := showcase.Examples[n-1].Prompt
	return func() tea.Msg {
		if err := ctx.Controller.Send(prompt); err != nil {
			return requestError("Could not send example", err)
		}
		return PromptSentMsg{Prompt: prompt}
	}
}

// FormatExamples lists a showcase with 1-based numbers.
func FormatExamples(s registry.Showcase) string {
	var sb strings.Builder
	sb.WriteString(s.Heading + "\n")
	if s.Summary != "" {
		sb.WriteString(s.Summary + "\n")
	}
	sb.WriteString("\n")
	for i, ex := range s.Examples {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, ex.Title, ex.Description)
	}
	sb.WriteString("\nSend one with /examples <number>")
	return sb.String()
}

// =============================================================================
// CODE BLOCKS
// =============================================================================

// lastReply returns the newest committed assistant reply.
func lastReply(ctx *Context) (string, error) {
	sess := ctx.Controller.Current()
	if sess == nil {
		return "", errors.New("no conversation")
	}
	msg, ok := sess.LastAssistant()
	if !ok {
		return "", errors.New("no reply yet")
	}
	return msg.Content, nil
}

// pickBlock returns the 1-based block n, or the last one when arg is empty.
func pickBlock(blocks []render.Segment, arg string) (render.Segment, int, error) {
	if len(blocks) == 0 {
		return render.Segment{}, 0, errors.New("the last reply has no code blocks")
	}
	if arg == "" {
		return blocks[len(blocks)-1], len(blocks), nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(blocks) {
		return render.Segment{}, 0, fmt.Errorf("want block 1-%d, got %q", len(blocks), arg)
	}
	return blocks[n-1], n, nil
}

// PreviewBlock picks the block to preview from a reply: block n of all
// blocks when arg is set, otherwise the last previewable one.
func PreviewBlock(reply, arg string) (render.Segment, error) {
	blocks := render.CodeBlocks(reply)
	if arg != "" {
		// Numbers refer to /blocks, which lists every block.
		block, _, err := pickBlock(blocks, arg)
		return block, err
	}
	for i := len(blocks) - 1; i >= 0; i-- {
		if render.Previewable(blocks[i].Language) {
			return blocks[i], nil
		}
	}
	return render.Segment{}, preview.ErrNotPreviewable
}

// HandleBlocks lists the code blocks of the last reply.
func HandleBlocks(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		reply, err := lastReply(ctx)
		if err != nil {
			return ErrorMsg{Title: "No code blocks", Message: err.Error()}
		}
		blocks := render.CodeBlocks(reply)
		if len(blocks) == 0 {
			return SystemMessageMsg{Content: "The last reply has no code blocks."}
		}
		return SystemMessageMsg{Content: FormatBlocks(blocks)}
	}
}

// FormatBlocks lists code blocks with 1-based numbers.
func FormatBlocks(blocks []render.Segment) string {
	var sb strings.Builder
	sb.WriteString("Code blocks:\n")
	for i, b := range blocks {
		lines := strings.Count(b.Text, "\n") + 1
		fmt.Fprintf(&sb, "  %d. %-12s %d lines", i+1, render.Label(b.Language), lines)
		if render.Previewable(b.Language) {
			sb.WriteString("  (preview)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// HandleCopy copies a code block, or the whole reply with "all".
func HandleCopy(ctx *Context, args []string) tea.Cmd {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	return func() tea.Msg {
		reply, err := lastReply(ctx)
		if err != nil {
			return ErrorMsg{Title: "Nothing to copy", Message: err.Error()}
		}

		text, what := reply, "reply"
		if blocks := render.CodeBlocks(reply); arg != "all" && (len(blocks) > 0 || arg != "") {
			block, n, err := pickBlock(blocks, arg)
			if err != nil {
				return ErrorMsg{Title: "Nothing to copy", Message: err.Error()}
			}
			text, what = block.Text, fmt.Sprintf("%s block %d", render.Label(block.Language), n)
		}

		if err := ctx.Clipboard(text); err != nil {
			return ErrorMsg{Title: "Copy failed", Message: err.Error(), Tip: "A clipboard utility (xclip, xsel or wl-copy) is required"}
		}
		return SystemMessageMsg{Content: "Copied " + what + " to the clipboard"}
	}
}

// HandlePreview opens a previewable block in a browser at a device size.
func HandlePreview(ctx *Context, args []string) tea.Cmd {
	blockArg, deviceArg := "", ""
	for _, a := range args {
		if _, err := strconv.Atoi(a); err == nil && blockArg == "" {
			blockArg = a
		} else {
			deviceArg = a
		}
	}
	device, err := preview.LookupDevice(deviceArg)
	if err != nil {
		return failure("Unknown device", err, "")
	}

	return func() tea.Msg {
		reply, err := lastReply(ctx)
		if err != nil {
			return ErrorMsg{Title: "Nothing to preview", Message: err.Error()}
		}

		block, err := PreviewBlock(reply, blockArg)
		if err != nil {
			return ErrorMsg{Title: "Nothing to preview", Message: err.Error()}
		}
		path, err := ctx.Preview(block.Language, block.Text, device)
		if err != nil {
			return ErrorMsg{Title: "Preview failed", Message: err.Error()}
		}
		return SystemMessageMsg{Content: fmt.Sprintf("Opened %s preview at %s: %s", render.Label(block.Language), device, path)}
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

// HandleTheme shows or sets the color theme.
func HandleTheme(ctx *Context, args []string) tea.Cmd {
	return updateSettings(ctx, args, "Theme", func(s *storage.Settings, v string) { s.Theme = v }, func(s storage.Settings) string { return s.Theme })
}

// HandleFont shows or sets the text size.
func HandleFont(ctx *Context, args []string) tea.Cmd {
	return updateSettings(ctx, args, "Font size", func(s *storage.Settings, v string) { s.FontSize = v }, func(s storage.Settings) string { return s.FontSize })
}

func updateSettings(ctx *Context, args []string, label string, set func(*storage.Settings, string), get func(storage.Settings) string) tea.Cmd {
	store := ctx.Controller.Store()
	if len(args) == 0 {
		return output("%s: %s", label, get(store.Preferences().Settings))
	}
	value := strings.ToLower(args[0])
	return func() tea.Msg {
		prefs := store.Preferences()
		set(&prefs.Settings, value)
		if err := prefs.Settings.Validate(); err != nil {
			return ErrorMsg{Title: "Invalid setting", Message: err.Error()}
		}
		if err := store.SavePreferences(prefs); err != nil {
			return ErrorMsg{Title: "Could not save settings", Message: err.Error()}
		}
		return SettingsChangedMsg{Settings: prefs.Settings}
	}
}

// HandleSync pulls conversations from the remote store.
func HandleSync(ctx *Context, args []string) tea.Cmd {
	store := ctx.Controller.Store()
	timeout := ctx.SyncTimeout
	return func() tea.Msg {
		c, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := store.Sync(c)
		if errors.Is(err, storage.ErrNoRemote) {
			return ErrorMsg{Title: "Not signed in", Message: err.Error(), Tip: "Run: codecraft auth signin"}
		}
		if err != nil {
			return ErrorMsg{Title: "Sync failed", Message: err.Error()}
		}
		return SystemMessageMsg{Content: fmt.Sprintf("Synced %d conversations", n)}
	}
}

// =============================================================================
// NAVIGATION
// =============================================================================

// HandleHelp shows help, optionally for one command or category.
func HandleHelp(ctx *Context, args []string) tea.Cmd {
	topic := strings.Join(args, " ")
	return func() tea.Msg {
		return ShowHelpMsg{Topic: topic}
	}
}

// HandleQuit exits the application.
func HandleQuit(ctx *Context, args []string) tea.Cmd {
	return tea.Quit
}

// FormatHelp renders help for all commands, one category, or one command.
func FormatHelp(r *Registry, topic string) string {
	topic = strings.TrimSpace(topic)
	if topic != "" {
		name := topic
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}
		if cmd := r.Get(name); cmd != nil {
			return formatCommandHelp(cmd)
		}
	}

	groups := r.ByCategory()
	var sb strings.Builder
	for _, cat := range Categories() {
		if topic != "" && !strings.EqualFold(topic, cat) {
			continue
		}
		cmds := groups[cat]
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString(cat + ":\n")
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			fmt.Fprintf(&sb, "  %s %s\n", util.PadWidth(usage, 30), cmd.Description)
		}
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		return fmt.Sprintf("No help for %q. Try /help", topic)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCommandHelp(cmd *Command) string {
	var sb strings.Builder
	usage := cmd.Usage
	if usage == "" {
		usage = cmd.Name
	}
	fmt.Fprintf(&sb, "%s\n  %s\n", usage, cmd.Description)
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&sb, "  Aliases: %s\n", strings.Join(cmd.Aliases, ", "))
	}
	for _, arg := range cmd.Args {
		req := "optional"
		if arg.Required {
			req = "required"
		}
		line := fmt.Sprintf("  %s (%s)", arg.Name, req)
		if arg.Description != "" {
			line += ": " + arg.Description
		}
		if len(arg.Values) > 0 {
			line += " [" + strings.Join(arg.Values, "|") + "]"
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// =============================================================================
// HELPERS
// =============================================================================

// ResolveSession accepts a session ID or a 1-based index into the
// newest-first list.
func ResolveSession(store *storage.Store, arg string) (string, error) {
	if store.Has(arg) {
		return arg, nil
	}
	if n, err := strconv.Atoi(arg); err == nil {
		list := store.List()
		if n >= 1 && n <= len(list) {
			return list[n-1].ID, nil
		}
		return "", fmt.Errorf("no conversation #%d (have %d)", n, len(list))
	}
	return "", fmt.Errorf("%w: %s", storage.ErrSessionNotFound, arg)
}
