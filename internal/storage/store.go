// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/clock"
	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/util"
)

// File names inside the data directory.
const (
	ChatsFile = "chats.json"
	PrefsFile = "prefs.json"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config holds configuration for the conversation store.
type Config struct {
	// Dir is the data directory holding chats.json and prefs.json.
	Dir string

	// DefaultModel is assigned to sessions created without a model and to
	// stored sessions that lack one.
	DefaultModel string

	// WatchDebounce is how long Watch waits after the last file event
	// before reloading (default: 200ms).
	WatchDebounce time.Duration

	// RemoteTimeout bounds each asynchronous remote push (default: 30s).
	RemoteTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultConfig returns the default store configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:           dir,
		WatchDebounce: 200 * time.Millisecond,
		RemoteTimeout: 30 * time.Second,
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store is the conversation store: an in-memory map of sessions mirrored
// to chats.json on every mutation, plus separately persisted preferences.
// When a Remote is attached, mutations also queue an asynchronous push.
//
// Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	dir          string
	chatsPath    string
	prefsPath    string
	defaultModel string
	debounce     time.Duration

	sessions  map[string]*model.Session
	prefs     Preferences
	lastID    int64
	lastSaved []byte

	clock  clock.Clock
	logger *slog.Logger
	write  func(path string, data []byte, perm os.FileMode) error

	pusher *pusher
}

// Open loads (or initialises) the store in cfg.Dir. It guarantees that a
// current session exists: when none is recorded, the newest session is
// chosen, and an empty store gets a fresh session.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("storage: data directory not set")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = 200 * time.Millisecond
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 30 * time.Second
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, &PersistenceError{Op: "open", Path: cfg.Dir, Err: err}
	}

	s := &Store{
		dir:          cfg.Dir,
		chatsPath:    filepath.Join(cfg.Dir, ChatsFile),
		prefsPath:    filepath.Join(cfg.Dir, PrefsFile),
		defaultModel: cfg.DefaultModel,
		debounce:     cfg.WatchDebounce,
		sessions:     make(map[string]*model.Session),
		prefs:        DefaultPreferences(),
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		write:        util.AtomicWriteFile,
	}
	s.pusher = newPusher(cfg.RemoteTimeout, cfg.Logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadChatsLocked(); err != nil {
		return nil, err
	}
	if err := s.loadPrefsLocked(); err != nil {
		return nil, err
	}
	if err := s.ensureCurrentLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Get returns a copy of the session with the given id.
func (s *Store) Get(id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess.Clone(), nil
}

// Has reports whether a session exists.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// List returns copies of all sessions, most recently created first.
func (s *Store) List() []*model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sortNewestFirst(out)
	return out
}

// Search returns sessions whose title or any message contains query
// (case-insensitive), newest first. An empty query returns everything.
func (s *Store) Search(query string) []*model.Session {
	all := s.List()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all
	}
	var results []*model.Session
	for _, sess := range all {
		if strings.Contains(strings.ToLower(sess.Title), query) {
			results = append(results, sess)
			continue
		}
		for _, msg := range sess.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, sess)
				break // Found a match, move to next session
			}
		}
	}
	return results
}

// Current returns a copy of the current session.
func (s *Store) Current() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[s.prefs.CurrentID].Clone()
}

// CurrentID returns the current session id.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.CurrentID
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Create adds an empty session for modelID (the default model when empty)
// and returns a copy. It does not change the current session.
func (s *Store) Create(modelID string) (*model.Session, error) {
	s.mu.Lock()
	sess := s.newSessionLocked(modelID)
	if err := s.saveChatsLocked(); err != nil {
		delete(s.sessions, sess.ID)
		s.mu.Unlock()
		return nil, err
	}
	s.pushLocked()
	s.mu.Unlock()
	return sess.Clone(), nil
}

// Append adds msg to the end of a session.
func (s *Store) Append(id string, msg model.Message) error {
	return s.mutate(id, func(sess *model.Session) error {
		sess.Messages = append(sess.Messages, msg)
		return nil
	})
}

// ReplaceLast swaps the trailing message of a session for msg. It is how a
// continued reply overwrites the partial reply it extends.
func (s *Store) ReplaceLast(id string, msg model.Message) error {
	return s.mutate(id, func(sess *model.Session) error {
		if len(sess.Messages) == 0 {
			return fmt.Errorf("session %s has no message to replace", id)
		}
		sess.Messages[len(sess.Messages)-1] = msg
		return nil
	})
}

// DropTrailingNotice removes the last message when it is a notice. It
// reports whether anything was removed.
func (s *Store) DropTrailingNotice(id string) (bool, error) {
	dropped := false
	err := s.mutate(id, func(sess *model.Session) error {
		if last, ok := sess.Last(); ok && last.IsNotice() {
			sess.Messages = sess.Messages[:len(sess.Messages)-1]
			dropped = true
			return nil
		}
		return errUnchanged
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	return dropped, err
}

// Rename sets a session's title.
func (s *Store) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("title cannot be empty")
	}
	return s.mutate(id, func(sess *model.Session) error {
		sess.Title = title
		return nil
	})
}

// SetModel sets the model a session talks to.
func (s *Store) SetModel(id, modelID string) error {
	return s.mutate(id, func(sess *model.Session) error {
		sess.Model = modelID
		return nil
	})
}

// Remove deletes a session. Removing the current session makes the newest
// remaining one current, or a fresh session when none remain.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	prevCurrent := s.prefs.CurrentID
	prevLastID := s.lastID
	delete(s.sessions, id)

	var created string
	if id == prevCurrent {
		next := s.newestLocked()
		if next == nil {
			next = s.newSessionLocked("")
			created = next.ID
		}
		s.prefs.CurrentID = next.ID
	}

	if err := s.saveChatsLocked(); err != nil {
		s.sessions[id] = sess
		if created != "" {
			delete(s.sessions, created)
			s.lastID = prevLastID
		}
		s.prefs.CurrentID = prevCurrent
		s.mu.Unlock()
		return err
	}
	if s.prefs.CurrentID != prevCurrent {
		if err := s.savePrefsLocked(); err != nil {
			s.logger.Warn("failed to save preferences after remove", "error", err)
		}
	}
	s.pushLocked()
	s.mu.Unlock()
	return nil
}

// Clear deletes every session and starts a fresh current one.
func (s *Store) Clear() (*model.Session, error) {
	s.mu.Lock()
	prev := s.sessions
	prevCurrent := s.prefs.CurrentID
	s.sessions = make(map[string]*model.Session)

	sess := s.newSessionLocked("")
	s.prefs.CurrentID = sess.ID
	if err := s.saveChatsLocked(); err != nil {
		s.sessions = prev
		s.prefs.CurrentID = prevCurrent
		s.mu.Unlock()
		return nil, err
	}
	if err := s.savePrefsLocked(); err != nil {
		s.logger.Warn("failed to save preferences after clear", "error", err)
	}
	s.pushLocked()
	s.mu.Unlock()
	return sess.Clone(), nil
}

// SetCurrent makes id the current session and persists the choice.
func (s *Store) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	prev := s.prefs.CurrentID
	s.prefs.CurrentID = id
	if err := s.savePrefsLocked(); err != nil {
		s.prefs.CurrentID = prev
		return err
	}
	return nil
}

// errUnchanged aborts a mutation without writing.
var errUnchanged = errors.New("unchanged")

// mutate applies fn to a session and persists the result. If the write
// fails the in-memory session is restored.
func (s *Store) mutate(id string, fn func(sess *model.Session) error) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	backup := sess.Clone()
	if err := fn(sess); err != nil {
		s.sessions[id] = backup
		s.mu.Unlock()
		return err
	}
	sess.UpdatedAt = s.clock.Now()

	if err := s.saveChatsLocked(); err != nil {
		s.sessions[id] = backup
		s.mu.Unlock()
		return err
	}
	s.pushLocked()
	s.mu.Unlock()
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func (s *Store) loadChatsLocked() error {
	data, err := os.ReadFile(s.chatsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &PersistenceError{Op: "load", Path: s.chatsPath, Err: err}
	}
	sessions, err := decodeSessions(data)
	if err != nil {
		// Keep the unreadable file for inspection and start empty.
		backup := s.chatsPath + ".corrupt"
		s.logger.Warn("chat history is unreadable, starting empty",
			"path", s.chatsPath, "backup", backup, "error", err)
		if rerr := os.Rename(s.chatsPath, backup); rerr != nil {
			return &PersistenceError{Op: "load", Path: s.chatsPath, Err: err}
		}
		return nil
	}
	s.replaceLocked(sessions)
	s.lastSaved = data
	return nil
}

// replaceLocked installs a freshly decoded session map.
func (s *Store) replaceLocked(sessions map[string]*model.Session) {
	for id, sess := range sessions {
		s.normalize(id, sess)
		if ms, err := strconv.ParseInt(id, 10, 64); err == nil && ms > s.lastID {
			s.lastID = ms
		}
	}
	s.sessions = sessions
}

func (s *Store) saveChatsLocked() error {
	data, err := json.MarshalIndent(s.sessions, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.chatsPath, Err: err}
	}
	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	if err := s.write(s.chatsPath, data, 0600); err != nil {
		return &PersistenceError{Op: "save", Path: s.chatsPath, Err: err}
	}
	s.lastSaved = data
	return nil
}

// decodeSessions parses the chats.json mapping of id to session.
func decodeSessions(data []byte) (map[string]*model.Session, error) {
	sessions := make(map[string]*model.Session)
	if len(strings.TrimSpace(string(data))) == 0 {
		return sessions, nil
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, err
	}
	for id, sess := range sessions {
		if sess == nil {
			delete(sessions, id)
		}
	}
	return sessions, nil
}

// normalize repairs fields older or foreign writers may have left out.
func (s *Store) normalize(id string, sess *model.Session) {
	sess.ID = id
	if sess.Title == "" {
		sess.Title = model.DefaultTitle
	}
	if sess.Model == "" {
		sess.Model = s.defaultModel
	}
	if sess.Messages == nil {
		sess.Messages = []model.Message{}
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = model.CreatedAtFromID(id)
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = sess.CreatedAt
	}
	kept := sess.Messages[:0]
	for _, m := range sess.Messages {
		role, err := model.ParseRole(string(m.Role))
		if err != nil {
			s.logger.Debug("dropping message with unknown role", "session", id, "role", m.Role)
			continue
		}
		m.Role = role
		kept = append(kept, m)
	}
	sess.Messages = kept
}

// newSessionLocked creates a session with a fresh id and adds it to the
// map. The id is the creation time in milliseconds, bumped past any id
// already handed out so two quick creations never collide.
func (s *Store) newSessionLocked(modelID string) *model.Session {
	if modelID == "" {
		modelID = s.defaultModel
	}
	now := s.clock.Now()
	ms := now.UnixMilli()
	if ms <= s.lastID {
		ms = s.lastID + 1
	}
	for {
		if _, taken := s.sessions[strconv.FormatInt(ms, 10)]; !taken {
			break
		}
		ms++
	}
	s.lastID = ms

	sess := model.NewSession(strconv.FormatInt(ms, 10), modelID, now)
	s.sessions[sess.ID] = sess
	return sess
}

func (s *Store) newestLocked() *model.Session {
	var newest *model.Session
	for _, sess := range s.sessions {
		if newest == nil || newer(sess, newest) {
			newest = sess
		}
	}
	return newest
}

// ensureCurrentLocked repairs the current-session pointer so it always
// names a stored session.
func (s *Store) ensureCurrentLocked() error {
	if _, ok := s.sessions[s.prefs.CurrentID]; ok {
		return nil
	}
	next := s.newestLocked()
	if next == nil {
		next = s.newSessionLocked("")
		if err := s.saveChatsLocked(); err != nil {
			return err
		}
	}
	s.prefs.CurrentID = next.ID
	return s.savePrefsLocked()
}

func (s *Store) snapshotLocked() map[string]*model.Session {
	if !s.pusher.attached() {
		return nil
	}
	return cloneAll(s.sessions)
}

func cloneAll(in map[string]*model.Session) map[string]*model.Session {
	out := make(map[string]*model.Session, len(in))
	for id, sess := range in {
		out[id] = sess.Clone()
	}
	return out
}

func newer(a, b *model.Session) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func sortNewestFirst(list []*model.Session) {
	sort.Slice(list, func(i, j int) bool { return newer(list[i], list[j]) })
}
