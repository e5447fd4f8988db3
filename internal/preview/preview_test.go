// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package preview

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDevice(t *testing.T) {
	d, err := LookupDevice("")
	require.NoError(t, err)
	assert.Equal(t, "desktop", d.Name)
	assert.Equal(t, 1920, d.Width)

	d, err = LookupDevice(" Mobile ")
	require.NoError(t, err)
	assert.Equal(t, 375, d.Width)
	assert.Equal(t, 667, d.Height)
	assert.True(t, d.Mobile())

	_, err = LookupDevice("watch")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestDevicesOrdered(t *testing.T) {
	assert.Equal(t, []string{"mobile", "tablet", "laptop", "desktop"}, DeviceNames())
	list := Devices()
	list[0].Width = 1
	assert.Equal(t, 375, Devices()[0].Width, "Devices must return a copy")
}

func TestBuildDocument(t *testing.T) {
	html := "<h1>hi</h1>"
	doc, err := BuildDocument("HTML", html)
	require.NoError(t, err)
	assert.Equal(t, html, doc)

	doc, err = BuildDocument("css", "h1 { color: red; }")
	require.NoError(t, err)
	assert.Contains(t, doc, "<!DOCTYPE html>")
	assert.Contains(t, doc, "h1 { color: red; }")
	assert.Contains(t, doc, `class="preview-content"`)

	doc, err = BuildDocument("js", "console.log(1)")
	require.NoError(t, err)
	assert.Contains(t, doc, `<div id="preview-content"></div><script>console.log(1)</script>`)

	_, err = BuildDocument("python", "print(1)")
	assert.ErrorIs(t, err, ErrNotPreviewable)
}

func TestWriteDocument(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDocument(dir, "<p>x</p>")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".html"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", string(data))

	assert.True(t, strings.HasPrefix(FileURL(path), "file:///"))
}

func TestScreenshot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if _, ok := launcher.LookPath(); !ok {
		t.Skip("no browser installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	d, err := LookupDevice("mobile")
	require.NoError(t, err)
	img, err := Screenshot(ctx, "html", "<h1>preview</h1>", d)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(img, []byte("\x89PNG")))
}
