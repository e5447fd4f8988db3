// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preview

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// =============================================================================
// OPEN IN BROWSER
// =============================================================================

// Open builds the page for a code block, writes it to a temp file and
// shows it in a browser window sized to the device. It returns the file
// path.
func Open(lang, code string, d Device) (string, error) {
	doc, err := BuildDocument(lang, code)
	if err != nil {
		return "", err
	}
	path, err := WriteDocument("", doc)
	if err != nil {
		return "", err
	}
	if err := OpenFile(path, d); err != nil {
		return path, err
	}
	return path, nil
}

// OpenFile shows a local page. A Chromium found on the system is started
// as an app window at the device size; otherwise the platform's default
// opener is used and the size is up to the browser.
func OpenFile(path string, d Device) error {
	target := FileURL(path)

	if bin, ok := launcher.LookPath(); ok {
		l := launcher.NewAppMode(target).
			Bin(bin).
			Leakless(false).
			Set("window-size", fmt.Sprintf("%d,%d", d.Width, d.Height))
		_, err := l.Launch()
		if err == nil {
			return nil
		}
		slog.Debug("app window launch failed, using system opener", slog.Any("error", err))
	}
	return systemOpen(target)
}

func systemOpen(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

// =============================================================================
// SCREENSHOTS
// =============================================================================

// Shooter renders pages in one headless browser.
type Shooter struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewShooter starts a headless browser. A system Chromium is preferred;
// without one rod downloads its pinned revision.
func NewShooter(ctx context.Context) (*Shooter, error) {
	l := launcher.New().Headless(true).Context(ctx)
	if bin, ok := launcher.LookPath(); ok {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	return &Shooter{launcher: l, browser: browser}, nil
}

// Capture renders the page at path in the device viewport and returns a PNG.
func (s *Shooter) Capture(path string, d Device) ([]byte, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.Width,
		Height:            d.Height,
		DeviceScaleFactor: 1,
		Mobile:            d.Mobile(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	if err := page.Navigate(FileURL(path)); err != nil {
		return nil, fmt.Errorf("failed to load preview: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to load preview: %w", err)
	}

	img, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return img, nil
}

// Close stops the browser.
func (s *Shooter) Close() error {
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	return err
}

// Screenshot renders a code block at one device size.
func Screenshot(ctx context.Context, lang, code string, d Device) ([]byte, error) {
	doc, err := BuildDocument(lang, code)
	if err != nil {
		return nil, err
	}
	path, err := WriteDocument("", doc)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	s, err := NewShooter(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Capture(path, d)
}
