// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/model"
)

// =============================================================================
// REMOTE CONTRACT
// =============================================================================

// Remote is the per-user chat collection in the document store.
type Remote interface {
	LoadChats(ctx context.Context) (map[string]*model.Session, error)
	SaveChats(ctx context.Context, chats map[string]*model.Session) error
}

// AttachRemote starts mirroring mutations to r. Pass nil to detach.
func (s *Store) AttachRemote(r Remote) {
	s.pusher.setRemote(r)
}

// RemoteAttached reports whether a remote store is attached.
func (s *Store) RemoteAttached() bool {
	return s.pusher.attached()
}

// Flush blocks until every queued remote push has been attempted.
func (s *Store) Flush() {
	s.pusher.flush()
}

// Sync pulls the remote collection and merges it into the local store by
// session id, the remote copy winning for every id it holds. The merged
// result is persisted and pushed back. It returns how many sessions were
// taken from the remote.
func (s *Store) Sync(ctx context.Context) (int, error) {
	r := s.pusher.get()
	if r == nil {
		return 0, ErrNoRemote
	}
	remote, err := r.LoadChats(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "pull", Remote: true, Err: err}
	}

	s.mu.Lock()
	prev := cloneAll(s.sessions)
	prevCurrent := s.prefs.CurrentID
	merged := cloneAll(s.sessions)
	for id, sess := range remote {
		if sess == nil {
			continue
		}
		c := sess.Clone()
		merged[id] = c
	}
	s.replaceLocked(merged)

	if err := s.saveChatsLocked(); err != nil {
		s.sessions = prev
		s.mu.Unlock()
		return 0, err
	}
	if err := s.ensureCurrentLocked(); err != nil {
		s.logger.Warn("failed to repair current session after sync", "error", err)
	}
	if s.prefs.CurrentID != prevCurrent {
		s.logger.Info("current session changed by sync", "from", prevCurrent, "to", s.prefs.CurrentID)
	}
	total := len(s.sessions)
	s.pushLocked()
	s.mu.Unlock()

	s.logger.Info("synced chat history", "pulled", len(remote), "total", total)
	return len(remote), nil
}

// pushLocked queues the current snapshot. It runs under s.mu so snapshots
// are queued in the order their mutations were applied.
func (s *Store) pushLocked() {
	snap := s.snapshotLocked()
	if snap == nil {
		return
	}
	s.pusher.enqueue(snap)
}

// =============================================================================
// ASYNC PUSHER
// =============================================================================

// pusher sends snapshots to the remote in the background. Only the newest
// queued snapshot is sent: a burst of mutations costs one round trip.
// Failures are logged and never reach the caller.
type pusher struct {
	mu      sync.Mutex
	idle    *sync.Cond
	remote  Remote
	pending map[string]*model.Session
	running bool

	timeout time.Duration
	logger  *slog.Logger
}

func newPusher(timeout time.Duration, logger *slog.Logger) *pusher {
	p := &pusher{timeout: timeout, logger: logger}
	p.idle = sync.NewCond(&p.mu)
	return p
}

func (p *pusher) setRemote(r Remote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = r
	if r == nil {
		p.pending = nil
	}
}

func (p *pusher) get() Remote {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

func (p *pusher) attached() bool {
	return p.get() != nil
}

func (p *pusher) enqueue(snap map[string]*model.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return
	}
	p.pending = snap
	if !p.running {
		p.running = true
		go p.loop()
	}
}

func (p *pusher) loop() {
	for {
		p.mu.Lock()
		snap, r := p.pending, p.remote
		p.pending = nil
		if snap == nil || r == nil {
			p.running = false
			p.idle.Broadcast()
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := r.SaveChats(ctx, snap)
		cancel()
		if err != nil {
			perr := &PersistenceError{Op: "push", Remote: true, Err: err}
			p.logger.Warn("remote chat sync failed", "sessions", len(snap), "error", perr)
		}
	}
}

func (p *pusher) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.running {
		p.idle.Wait()
	}
}
