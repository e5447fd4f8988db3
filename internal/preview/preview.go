// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preview

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/codecraft-tui/internal/render"
)

var (
	// ErrNotPreviewable is returned for languages other than html, css and
	// javascript.
	ErrNotPreviewable = errors.New("only html, css and javascript can be previewed")

	// ErrUnknownDevice is returned by LookupDevice.
	ErrUnknownDevice = errors.New("unknown device")
)

// =============================================================================
// DEVICES
// =============================================================================

// Device is a viewport preset.
type Device struct {
	Name   string
	Label  string
	Width  int
	Height int
}

// Mobile reports whether the device should be emulated as a phone.
func (d Device) Mobile() bool {
	return d.Name == "mobile"
}

func (d Device) String() string {
	return fmt.Sprintf("%s (%dx%d)", d.Label, d.Width, d.Height)
}

// DefaultDevice is used when no device is named.
const DefaultDevice = "desktop"

var devices = []Device{
	{Name: "mobile", Label: "Mobile", Width: 375, Height: 667},
	{Name: "tablet", Label: "Tablet", Width: 768, Height: 1024},
	{Name: "laptop", Label: "Laptop", Width: 1366, Height: 768},
	{Name: "desktop", Label: "Desktop", Width: 1920, Height: 1080},
}

// Devices returns every preset from smallest to largest.
func Devices() []Device {
	out := make([]Device, len(devices))
	copy(out, devices)
	return out
}

// DeviceNames returns the preset names in order.
func DeviceNames() []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}

// LookupDevice finds a preset by name. An empty name selects DefaultDevice.
func LookupDevice(name string) (Device, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultDevice
	}
	for _, d := range devices {
		if d.Name == name {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w %q (want %s)", ErrUnknownDevice, name, strings.Join(DeviceNames(), ", "))
}

// =============================================================================
// DOCUMENTS
// =============================================================================

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Preview</title>
<style>
body {
  margin: 0;
  min-height: 100vh;
  display: flex;
  align-items: center;
  justify-content: center;
  font-family: system-ui, -apple-system, sans-serif;
}
%s
</style>
</head>
<body>
%s
</body>
</html>
`

// BuildDocument wraps a code block in a standalone page. HTML is used as
// is; CSS goes into the page's style sheet; JavaScript runs after an empty
// #preview-content element.
func BuildDocument(lang, code string) (string, error) {
	switch render.NormalizeLanguage(lang) {
	case "html":
		return code, nil
	case "css":
		return fmt.Sprintf(pageTemplate, code, `<div class="preview-content">Preview content</div>`), nil
	case "javascript":
		return fmt.Sprintf(pageTemplate, "", `<div id="preview-content"></div><script>`+code+`</script>`), nil
	}
	return "", fmt.Errorf("%w (got %q)", ErrNotPreviewable, lang)
}

// WriteDocument writes doc to a new file in dir (the system temp dir when
// empty) and returns its path.
func WriteDocument(dir, doc string) (string, error) {
	f, err := os.CreateTemp(dir, "codecraft-preview-*.html")
	if err != nil {
		return "", fmt.Errorf("failed to create preview file: %w", err)
	}
	if _, err := f.WriteString(doc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write preview file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write preview file: %w", err)
	}
	return f.Name(), nil
}

// FileURL converts a local path to a file:// URL.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String()
}
