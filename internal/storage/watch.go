// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/codecraft-tui/internal/clock"
)

// =============================================================================
// FILE WATCH
// =============================================================================

// Watch reloads chats.json when another process rewrites it, so two
// running clients converge (last writer wins). onReload, if non-nil, is
// called after each reload that changed the store. Watching stops when
// ctx is cancelled.
//
// The data directory is watched rather than the file, because atomic
// writes replace the file and would drop a file-level watch.
func (s *Store) Watch(ctx context.Context, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return err
	}

	var (
		mu    sync.Mutex
		timer clock.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = s.clock.AfterFunc(s.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			changed, err := s.Reload()
			if err != nil {
				s.logger.Warn("failed to reload chat history", "error", err)
				return
			}
			if changed && onReload != nil {
				onReload()
			}
		})
	}

	go func() {
		defer watcher.Close()
		defer func() {
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != ChatsFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Debug("file watch error", "error", err)
			}
		}
	}()
	return nil
}

// Reload re-reads chats.json from disk. It reports false when the file
// holds exactly what this store last wrote.
func (s *Store) Reload() (bool, error) {
	data, err := os.ReadFile(s.chatsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &PersistenceError{Op: "load", Path: s.chatsPath, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(data, s.lastSaved) {
		return false, nil
	}
	sessions, err := decodeSessions(data)
	if err != nil {
		// Usually a half-written file from a non-atomic writer; the next
		// event will retry.
		return false, &PersistenceError{Op: "load", Path: s.chatsPath, Err: err}
	}
	s.replaceLocked(sessions)
	s.lastSaved = data
	if err := s.ensureCurrentLocked(); err != nil {
		return true, err
	}
	s.logger.Info("reloaded chat history", "sessions", len(sessions))
	return true, nil
}
