// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"sort"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/codecraft-tui/internal/preview"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/session"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	Description string

	// Usage shows argument syntax (e.g., "/model <name>")
	Usage string

	Args []ArgDef

	// Handler validates its arguments and returns the command to run.
	Handler func(ctx *Context, args []string) tea.Cmd

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string

	// Values lists the accepted words. Enum arguments are validated
	// against them; for other types they only feed completion.
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString  ArgType = iota // Free-form string
	ArgTypeModel                  // Model key or display name
	ArgTypeSession                // Session ID or list index
	ArgTypeEnum                   // One of predefined values
)

// Help categories, in display order.
const (
	CategoryConversation = "Conversation"
	CategoryRequest      = "Request"
	CategoryModel        = "Model"
	CategoryCode         = "Code"
	CategorySettings     = "Settings"
	CategoryNavigation   = "Navigation"
)

// Categories returns the help categories in display order.
func Categories() []string {
	return []string{
		CategoryConversation, CategoryRequest, CategoryModel,
		CategoryCode, CategorySettings, CategoryNavigation,
	}
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a registry with every built-in command.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry, replacing one with the same
// name.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns all registered commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// ByCategory returns visible commands grouped by category.
func (r *Registry) ByCategory() map[string][]*Command {
	result := make(map[string][]*Command)
	for _, cmd := range r.All() {
		if cmd.Hidden {
			continue
		}
		category := cmd.Category
		if category == "" {
			category = CategoryNavigation
		}
		result[category] = append(result[category], cmd)
	}
	return result
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Conversation
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n"},
		Description: "Start a new conversation",
		Category:    CategoryConversation,
		Handler:     HandleNew,
	})
	r.Register(&Command{
		Name:        "/sessions",
		Aliases:     []string{"/ls", "/history"},
		Description: "List saved conversations",
		Usage:       "/sessions [search]",
		Args: []ArgDef{
			{Name: "search", Type: ArgTypeString, Description: "Filter by title or content"},
		},
		Category: CategoryConversation,
		Handler:  HandleSessions,
	})
	r.Register(&Command{
		Name:        "/switch",
		Aliases:     []string{"/load", "/open"},
		Description: "Switch to another conversation",
		Usage:       "/switch <id|#>",
		Args: []ArgDef{
			{Name: "session", Required: true, Type: ArgTypeSession, Description: "Session ID or list number"},
		},
		Category: CategoryConversation,
		Handler:  HandleSwitch,
	})
	r.Register(&Command{
		Name:        "/rename",
		Description: "Rename the current conversation",
		Usage:       "/rename <title>",
		Args: []ArgDef{
			{Name: "title", Required: true, Type: ArgTypeString, Description: "New title"},
		},
		Category: CategoryConversation,
		Handler:  HandleRename,
	})
	r.Register(&Command{
		Name:        "/delete",
		Aliases:     []string{"/rm"},
		Description: "Delete a conversation (current by default)",
		Usage:       "/delete [id|#]",
		Args: []ArgDef{
			{Name: "session", Type: ArgTypeSession, Description: "Session ID or list number"},
		},
		Category: CategoryConversation,
		Handler:  HandleDelete,
	})
	r.Register(&Command{
		Name:        "/clear",
		Description: "Delete every conversation",
		Usage:       "/clear confirm",
		Args: []ArgDef{
			{Name: "confirm", Type: ArgTypeEnum, Values: []string{"confirm"}, Description: "Required to clear history"},
		},
		Category: CategoryConversation,
		Handler:  HandleClear,
	})
	r.Register(&Command{
		Name:        "/export",
		Description: "Export the current conversation",
		Usage:       "/export [md|html|json] [path]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: ExportFormats(), Description: "Output format"},
			{Name: "path", Type: ArgTypeString, Description: "Output file"},
		},
		Category: CategoryConversation,
		Handler:  HandleExport,
	})

	// Request
	r.Register(&Command{
		Name:        "/retry",
		Aliases:     []string{"/r"},
		Description: "Retry the last failed request",
		Category:    CategoryRequest,
		Handler:     HandleRetry,
	})
	r.Register(&Command{
		Name:        "/continue",
		Aliases:     []string{"/c"},
		Description: "Continue an interrupted or cut-off reply",
		Category:    CategoryRequest,
		Handler:     HandleContinue,
	})
	r.Register(&Command{
		Name:        "/cancel",
		Aliases:     []string{"/stop"},
		Description: "Cancel the streaming reply",
		Category:    CategoryRequest,
		Handler:     HandleCancel,
	})

	// Model
	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Show or switch the model",
		Usage:       "/model [name]",
		Args: []ArgDef{
			{Name: "model", Type: ArgTypeModel, Description: "Model key or name"},
		},
		Category: CategoryModel,
		Handler:  HandleModel,
	})
	r.Register(&Command{
		Name:        "/mode",
		Aliases:     []string{"/verbosity"},
		Description: "Show or set the response length",
		Usage:       "/mode [short|medium|long]",
		Args: []ArgDef{
			{Name: "mode", Type: ArgTypeEnum, Values: modeNames(), Description: "Response length"},
		},
		Category: CategoryModel,
		Handler:  HandleMode,
	})
	r.Register(&Command{
		Name:        "/examples",
		Aliases:     []string{"/ex"},
		Description: "List example prompts or send one",
		Usage:       "/examples [#]",
		Args: []ArgDef{
			{Name: "number", Type: ArgTypeString, Description: "Example to send"},
		},
		Category: CategoryModel,
		Handler:  HandleExamples,
	})

	// Code
	r.Register(&Command{
		Name:        "/blocks",
		Description: "List code blocks in the last reply",
		Category:    CategoryCode,
		Handler:     HandleBlocks,
	})
	r.Register(&Command{
		Name:        "/copy",
		Aliases:     []string{"/cp"},
		Description: "Copy a code block (or the whole reply) to the clipboard",
		Usage:       "/copy [#|all]",
		Args: []ArgDef{
			{Name: "block", Type: ArgTypeString, Description: "Block number, or all"},
		},
		Category: CategoryCode,
		Handler:  HandleCopy,
	})
	r.Register(&Command{
		Name:        "/preview",
		Aliases:     []string{"/p"},
		Description: "Open an html, css or javascript block in a browser",
		Usage:       "/preview [#] [device]",
		Args: []ArgDef{
			{Name: "block", Type: ArgTypeString, Description: "Block number"},
			{Name: "device", Type: ArgTypeString, Values: preview.DeviceNames(), Description: "Viewport size"},
		},
		Category: CategoryCode,
		Handler:  HandlePreview,
	})

	// Settings
	r.Register(&Command{
		Name:        "/theme",
		Description: "Show or set the color theme",
		Usage:       "/theme [light|dark]",
		Args: []ArgDef{
			{Name: "theme", Type: ArgTypeEnum, Values: []string{storage.ThemeLight, storage.ThemeDark}},
		},
		Category: CategorySettings,
		Handler:  HandleTheme,
	})
	r.Register(&Command{
		Name:        "/font",
		Description: "Show or set the text size",
		Usage:       "/font [small|medium|large]",
		Args: []ArgDef{
			{Name: "size", Type: ArgTypeEnum, Values: []string{storage.FontSmall, storage.FontMedium, storage.FontLarge}},
		},
		Category: CategorySettings,
		Handler:  HandleFont,
	})
	r.Register(&Command{
		Name:        "/sync",
		Description: "Pull conversations from the signed-in account",
		Category:    CategorySettings,
		Handler:     HandleSync,
	})

	// Navigation
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show help and available commands",
		Usage:       "/help [command|category]",
		Args: []ArgDef{
			{Name: "topic", Type: ArgTypeString, Description: "Command or category"},
		},
		Category: CategoryNavigation,
		Handler:  HandleHelp,
	})
	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit codecraft",
		Category:    CategoryNavigation,
		Handler:     HandleQuit,
	})
}

func modeNames() []string {
	modes := registry.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return names
}

// =============================================================================
// CONTEXT TYPE
// =============================================================================

// Context gives command handlers the running application. Controller and
// Models are required; the function fields default to the system
// implementations and are replaced in tests.
type Context struct {
	Controller *session.Controller
	Models     *registry.Registry
	Commands   *Registry

	// Clipboard copies text.
	Clipboard func(text string) error

	// Preview opens a code block in a browser and returns the page path.
	Preview func(lang, code string, d preview.Device) (string, error)

	// ExportDir receives exports given without a path.
	ExportDir string

	// SyncTimeout bounds /sync.
	SyncTimeout time.Duration
}

// NewContext creates a command context for a controller.
func NewContext(ctrl *session.Controller, models *registry.Registry, cmds *Registry) *Context {
	return &Context{
		Controller:  ctrl,
		Models:      models,
		Commands:    cmds,
		Clipboard:   clipboard.WriteAll,
		Preview:     preview.Open,
		ExportDir:   ".",
		SyncTimeout: 30 * time.Second,
	}
}

// =============================================================================
// COMPLETION TYPE
// =============================================================================

// Completion represents a completion suggestion.
type Completion struct {
	// Value to insert
	Value string

	// Display text (may include formatting)
	Display string

	Description string

	// Score for ranking (higher = better match)
	Score int
}
