// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/jeranaias/codecraft-tui/internal/storage"
)

func TestNewThemeFollowsSettings(t *testing.T) {
	dark := NewTheme(storage.Settings{Theme: storage.ThemeDark, FontSize: storage.FontLarge})
	if !dark.IsDark {
		t.Error("dark setting should produce a dark theme")
	}
	if dark.WrapWidth != 72 {
		t.Errorf("large font wrap width = %d, want 72", dark.WrapWidth)
	}

	light := NewTheme(storage.Settings{Theme: storage.ThemeLight, FontSize: storage.FontSmall})
	if light.IsDark {
		t.Error("light setting should produce a light theme")
	}
	if light.WrapWidth != 120 {
		t.Errorf("small font wrap width = %d, want 120", light.WrapWidth)
	}

	fallback := NewTheme(storage.Settings{Theme: storage.ThemeLight})
	if fallback.WrapWidth != 96 {
		t.Errorf("default wrap width = %d, want 96", fallback.WrapWidth)
	}
}

func TestContentWidth(t *testing.T) {
	th := NewTheme(storage.Settings{Theme: storage.ThemeLight, FontSize: storage.FontMedium})
	tests := []struct {
		term, want int
	}{
		{200, 96},
		{80, 76},
		{10, 20},
	}
	for _, tc := range tests {
		if got := th.ContentWidth(tc.term); got != tc.want {
			t.Errorf("ContentWidth(%d) = %d, want %d", tc.term, got, tc.want)
		}
	}
}

func TestRenderIndicators(t *testing.T) {
	if got := RenderSuccess("saved"); !strings.Contains(got, "✓ saved") {
		t.Errorf("RenderSuccess = %q", got)
	}
	if got := RenderError("failed"); !strings.Contains(got, "✗ failed") {
		t.Errorf("RenderError = %q", got)
	}
	if got := RenderWarning("slow"); !strings.Contains(got, "⚠ slow") {
		t.Errorf("RenderWarning = %q", got)
	}
	if got := RenderInfo("note"); !strings.Contains(got, "ℹ note") {
		t.Errorf("RenderInfo = %q", got)
	}
}
