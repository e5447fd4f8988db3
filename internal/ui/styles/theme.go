// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/codecraft-tui/internal/storage"
)

// Theme holds the styles for the chat screen.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// WrapWidth caps message width; it follows the font size setting.
	WrapWidth int

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderModel lipgloss.Style
	HeaderMeta  lipgloss.Style

	UserLabel      lipgloss.Style
	UserText       lipgloss.Style
	AssistantLabel lipgloss.Style
	AssistantText  lipgloss.Style
	Notice         lipgloss.Style
	System         lipgloss.Style
	ErrorTitle     lipgloss.Style
	ErrorTip       lipgloss.Style
	Timestamp      lipgloss.Style

	Cursor      lipgloss.Style
	Spinner     lipgloss.Style
	StateIdle   lipgloss.Style
	StateBusy   lipgloss.Style
	StateStall  lipgloss.Style
	StatusBar   lipgloss.Style
	ShortcutKey lipgloss.Style
	Hint        lipgloss.Style

	InputBorder        lipgloss.Style
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style
	CompletionDesc     lipgloss.Style

	WelcomeHeading lipgloss.Style
	WelcomeItem    lipgloss.Style
}

// Wrap widths per font size.
var wrapWidths = map[string]int{
	storage.FontSmall:  120,
	storage.FontMedium: 96,
	storage.FontLarge:  72,
}

// NewTheme builds a theme for the display settings. An empty theme name
// keeps the terminal's detected background.
func NewTheme(settings storage.Settings) *Theme {
	t := &Theme{ColorProfile: termenv.ColorProfile()}

	switch settings.Theme {
	case storage.ThemeDark:
		t.IsDark = true
	case storage.ThemeLight:
		t.IsDark = false
	default:
		t.IsDark = termenv.HasDarkBackground()
	}

	t.WrapWidth = wrapWidths[settings.FontSize]
	if t.WrapWidth == 0 {
		t.WrapWidth = wrapWidths[storage.FontMedium]
	}

	t.initStyles()
	return t
}

// Apply makes AdaptiveColor resolve to this theme's half.
func (t *Theme) Apply() {
	lipgloss.SetHasDarkBackground(t.IsDark)
}

// ContentWidth is the message width for a terminal of the given width.
func (t *Theme) ContentWidth(termWidth int) int {
	w := termWidth - 4
	if w > t.WrapWidth {
		w = t.WrapWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().Bold(true).Foreground(Indigo)
	t.HeaderModel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.HeaderMeta = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)

	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.UserText = lipgloss.NewStyle().
		Foreground(UserFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(UserBorder).
		PaddingLeft(1)
	t.AssistantLabel = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.AssistantText = lipgloss.NewStyle().
		Foreground(AssistantFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBorder).
		PaddingLeft(1)
	t.Notice = lipgloss.NewStyle().
		Foreground(NoticeFg).
		Background(NoticeBg).
		Padding(0, 1)
	t.System = lipgloss.NewStyle().
		Foreground(SystemFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(SystemBorder).
		PaddingLeft(1)
	t.ErrorTitle = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.ErrorTip = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)

	t.Cursor = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.Spinner = lipgloss.NewStyle().Foreground(Indigo)
	t.StateIdle = lipgloss.NewStyle().Foreground(Emerald)
	t.StateBusy = lipgloss.NewStyle().Foreground(Indigo).Bold(true)
	t.StateStall = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.StatusBar = lipgloss.NewStyle().Foreground(TextSecondary).Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Hint = lipgloss.NewStyle().Foreground(TextMuted)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.CompletionItem = lipgloss.NewStyle().Foreground(TextPrimary).Padding(0, 1)
	t.CompletionSelected = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Indigo).
		Padding(0, 1)
	t.CompletionDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.WelcomeHeading = lipgloss.NewStyle().Bold(true).Foreground(Indigo).MarginBottom(1)
	t.WelcomeItem = lipgloss.NewStyle().Foreground(TextPrimary)
}
