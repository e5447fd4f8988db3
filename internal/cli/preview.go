// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// preview.go - Open or screenshot generated HTML, CSS and JavaScript.
//
// Examples:
//   codecraft preview                         Newest previewable block, desktop
//   codecraft preview --device mobile         Open at phone size
//   codecraft preview -s 3 -b 2               Block 2 of session #3
//   codecraft preview --screenshot shots/     Save a PNG instead of opening
//   codecraft preview --screenshot shots/ --all-devices

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jeranaias/codecraft-tui/internal/commands"
	"github.com/jeranaias/codecraft-tui/internal/preview"
	"github.com/jeranaias/codecraft-tui/internal/render"
)

type previewOptions struct {
	session    string
	block      string
	device     string
	screenshot string
	allDevices bool
}

func (r *runner) previewCmd() *cobra.Command {
	var opts previewOptions
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Preview code from the last reply in a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(func(app *App) error {
				var sargs []string
				if opts.session != "" {
					sargs = []string{opts.session}
				}
				sess, err := pickSession(app.Store, sargs)
				if err != nil {
					return err
				}
				reply, ok := sess.LastAssistant()
				if !ok {
					return fmt.Errorf("%q has no reply to preview", sess.Title)
				}
				block, err := commands.PreviewBlock(reply.Content, opts.block)
				if err != nil {
					return err
				}

				if opts.screenshot == "" {
					device, err := preview.LookupDevice(opts.device)
					if err != nil {
						return err
					}
					path, err := preview.Open(block.Language, block.Text, device)
					if err != nil {
						return err
					}
					cmd.Printf("Opened %s preview at %s: %s\n", render.Label(block.Language), device, path)
					return nil
				}
				return captureBlock(cmd, block, sess.ID, opts)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.session, "session", "s", "", "Session id or list number (default: current)")
	flags.StringVarP(&opts.block, "block", "b", "", "Code block number as listed by /blocks")
	flags.StringVarP(&opts.device, "device", "d", preview.DefaultDevice, "Device: "+strings.Join(preview.DeviceNames(), ", "))
	flags.StringVar(&opts.screenshot, "screenshot", "", "Save PNG screenshots to this directory instead of opening")
	flags.BoolVar(&opts.allDevices, "all-devices", false, "With --screenshot, capture every device size")
	return cmd
}

// captureBlock renders block headlessly at one or all device sizes.
func captureBlock(cmd *cobra.Command, block render.Segment, sessionID string, opts previewOptions) error {
	devices := preview.Devices()
	if !opts.allDevices {
		d, err := preview.LookupDevice(opts.device)
		if err != nil {
			return err
		}
		devices = []preview.Device{d}
	}
	if err := os.MkdirAll(opts.screenshot, 0755); err != nil {
		return err
	}

	doc, err := preview.BuildDocument(block.Language, block.Text)
	if err != nil {
		return err
	}
	page, err := preview.WriteDocument("", doc)
	if err != nil {
		return err
	}
	defer os.Remove(page)

	shooter, err := preview.NewShooter(cmd.Context())
	if err != nil {
		return NewCommandError("preview", "screenshot", "could not start a headless browser", err)
	}
	defer shooter.Close()

	bar := progressbar.NewOptions(len(devices),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
	var saved []string
	for _, d := range devices {
		bar.Describe("Capturing " + d.Label)
		png, err := shooter.Capture(page, d)
		if err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
		out := filepath.Join(opts.screenshot, fmt.Sprintf("codecraft-%s-%s.png", sessionID, d.Name))
		if err := os.WriteFile(out, png, 0644); err != nil {
			return err
		}
		saved = append(saved, out)
		bar.Add(1)
	}
	bar.Finish()

	for _, p := range saved {
		cmd.Println(p)
	}
	return nil
}
