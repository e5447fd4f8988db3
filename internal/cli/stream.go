// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/session"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// streamPrinter writes a reply to the terminal as it streams. A retry
// cannot take back printed text, so it prints a marker and starts over.
type streamPrinter struct {
	out   io.Writer
	errw  io.Writer
	quiet bool // collect only
	label string


	mu      sync.Mutex
	printed int
	err     error
}

func (p *streamPrinter) handle(ev session.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case session.EventDelta:
		text := ev.Draft.Text
		if !p.quiet && len(text) > p.printed {
			if p.label != "" {
				fmt.Fprintln(p.out, AssistantStyle.Render(p.label))
				p.label = ""
			}
			io.WriteString(p.out, text[p.printed:])
		}
		p.printed = len(text)
	case session.EventRestart:
		if !p.quiet && p.printed > 0 {
			fmt.Fprintln(p.errw, "\n"+WarningStyle.Render("(connection lost, retrying)"))
		}
		p.printed = 0
	case session.EventState:
		if ev.State == session.Interrupted && !p.quiet {
			fmt.Fprintln(p.errw, "\n"+WarningStyle.Render("(stream paused, waiting)"))
		}
	case session.EventFailed:
		p.err = ev.Err
	case session.EventCancelled:
		p.err = &cloud.AbortError{Err: context.Canceled}
	}
}

func (p *streamPrinter) result() (printed bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed > 0, p.err
}

// runRequest starts a request with start, streams its reply to out and
// waits until the controller is idle again. Ctrl+C cancels the request.
func runRequest(ctx context.Context, ctrl *session.Controller, out, errw io.Writer, quiet bool, start func() error) error {
	return runLabeledRequest(ctx, ctrl, out, errw, quiet, "", start)
}

// runLabeledRequest is runRequest with a heading printed above the reply.
func runLabeledRequest(ctx context.Context, ctrl *session.Controller, out, errw io.Writer, quiet bool, label string, start func() error) error {
	p := &streamPrinter{out: out, errw: errw, quiet: quiet, label: label}
	unsub := ctrl.Subscribe(p.handle)
	defer unsub()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- ctrl.WaitIdle(context.Background()) }()
	select {
	case <-done:
	case <-sigCtx.Done():
		ctrl.Cancel()
		<-done
	}
	ctrl.Drain()

	printed, err := p.result()
	if printed && !quiet {
		fmt.Fprintln(out)
	}
	if cloud.IsAbort(err) {
		fmt.Fprintln(errw, DimStyle.Render("Cancelled."))
		return nil
	}
	return err
}

// =============================================================================
// MARKDOWN
// =============================================================================

// renderMarkdown renders a reply for the terminal, falling back to the raw
// text when rendering fails.
func renderMarkdown(content string, width int) string {
	style := glamour.WithAutoStyle()
	if !ColorsEnabled() {
		style = glamour.WithStandardStyle("notty")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

var errEmptyQuestion = errors.New("no question given")
