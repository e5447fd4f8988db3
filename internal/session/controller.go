// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/codecraft-tui/internal/clock"
	"github.com/jeranaias/codecraft-tui/internal/cloud"
	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/registry"
	"github.com/jeranaias/codecraft-tui/internal/render"
	"github.com/jeranaias/codecraft-tui/internal/storage"
)

// =============================================================================
// CONSTANTS AND ERRORS
// =============================================================================

const (
	// DefaultSilenceTimeout is how long a stream may go without a delta
	// before it is reported as interrupted.
	DefaultSilenceTimeout = 5 * time.Second

	// ContinuePrompt is the synthetic user turn that asks the model to pick
	// up where a partial reply stopped.
	ContinuePrompt = "Please continue the previous response."

	// FailureNotice is appended to the session when a request fails.
	FailureNotice = "Sorry, there was an error. Please try again."
)

var (
	// ErrBusy is returned by Send while a request is active. The active
	// request has been cancelled and nothing was sent.
	ErrBusy = errors.New("a request was in progress and has been cancelled")

	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNothingToRetry is returned by Retry when no failed request is pending.
	ErrNothingToRetry = errors.New("nothing to retry")

	// ErrNothingToContinue is returned by Continue when there is no partial
	// reply to extend.
	ErrNothingToContinue = errors.New("nothing to continue")
)

// =============================================================================
// STATE
// =============================================================================

// State is the controller's request lifecycle state.
type State int

const (
	// Idle means no request is in flight.
	Idle State = iota
	// Sending means a request was issued and no delta has arrived yet.
	Sending
	// Streaming means deltas are arriving.
	Streaming
	// Interrupted means a streaming request has been silent for the silence
	// timeout. The request is still live.
	Interrupted
	// Finalizing means the stream ended and the reply is being committed.
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Interrupted:
		return "interrupted"
	case Finalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// Active reports whether a request is in flight.
func (s State) Active() bool {
	return s == Sending || s == Streaming || s == Interrupted
}

// Draft is the uncommitted assistant reply of the in-flight request.
type Draft struct {
	// SessionID owns the draft.
	SessionID string
	// Base is the earlier partial reply a continuation extends.
	Base string
	// Text is what this request has streamed so far.
	Text string
	// Replaces means Base is already the session's trailing message and the
	// commit overwrites it.
	Replaces bool
	// Stalled is set while the stream is interrupted.
	Stalled bool
}

// Content returns the full visible reply.
func (d Draft) Content() string {
	return d.Base + d.Text
}

// Completer starts streaming completions. *cloud.Client implements it.
type Completer interface {
	Complete(ctx context.Context, req cloud.Request) *cloud.StreamHandle
}

// =============================================================================
// CONFIG
// =============================================================================

// Config holds controller settings.
type Config struct {
	// SilenceTimeout is the quiet period before Interrupted (default 5s).
	SilenceTimeout time.Duration

	// Clock drives the silence timer and message timestamps.
	Clock clock.Clock

	// Logger receives lifecycle logs. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		SilenceTimeout: DefaultSilenceTimeout,
		Clock:          clock.Real(),
	}
}

// =============================================================================
// CONTROLLER
// =============================================================================

// pending is a request that can be replayed by Retry.
type pending struct {
	req   cloud.Request
	draft Draft
}

// Controller runs the send, stream, commit lifecycle for the current
// session. At most one request is in flight; it owns that request's
// cancel function and is the only writer of assistant messages.
type Controller struct {
	store    *storage.Store
	client   Completer
	registry *registry.Registry
	clock    clock.Clock
	logger   *slog.Logger
	silence  time.Duration
	notify   *notifier

	mu     sync.Mutex
	state  State
	mode   registry.Mode
	gen    uint64
	cancel context.CancelFunc
	draft  *Draft
	timer  clock.Timer
	armed  uint64 // bumped whenever the silence timer is armed or stopped
	last   *pending
	failed *pending
	idle   chan struct{}
}

// New creates a controller over store. The verbosity mode is restored
// from the store's preferences.
func New(store *storage.Store, client Completer, reg *registry.Registry, cfg Config) *Controller {
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mode, err := registry.ParseMode(store.Preferences().Verbosity)
	if err != nil {
		mode = registry.DefaultMode
	}

	idle := make(chan struct{})
	close(idle)
	return &Controller{
		store:    store,
		client:   client,
		registry: reg,
		clock:    cfg.Clock,
		logger:   logger.With(slog.String("component", "session")),
		silence:  cfg.SilenceTimeout,
		notify:   newNotifier(),
		mode:     mode,
		idle:     idle,
	}
}

// Subscribe registers fn for every future event. Events are delivered in
// order on a single goroutine. The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(Event)) func() {
	return c.notify.subscribe(fn)
}

// Drain blocks until every event published so far has been delivered.
func (c *Controller) Drain() {
	c.notify.drain()
}

// Close cancels any active request and stops event delivery.
func (c *Controller) Close() {
	c.Cancel()
	c.notify.close()
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the in-flight draft.
func (c *Controller) Draft() (Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return Draft{}, false
	}
	return *c.draft, true
}

// Mode returns the verbosity mode used for new requests.
func (c *Controller) Mode() registry.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Store returns the conversation store.
func (c *Controller) Store() *storage.Store {
	return c.store
}

// Current returns a copy of the current session.
func (c *Controller) Current() *model.Session {
	return c.store.Current()
}

// CanRetry reports whether Retry has a failed request to replay.
func (c *Controller) CanRetry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed != nil && !c.state.Active()
}

// CanContinue reports whether Continue would start a request.
func (c *Controller) CanContinue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Interrupted:
		return true
	case Idle:
		_, ok := c.unterminatedReplyLocked()
		return ok
	}
	return false
}

// WaitIdle blocks until no request is in flight or ctx is done.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// Send appends text as a user message to the current session and requests
// a reply. While a request is active it cancels that request instead and
// returns ErrBusy.
func (c *Controller) Send(text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		c.cancelLocked()
		return ErrBusy
	}
	if text == "" {
		return ErrEmptyMessage
	}

	sess := c.store.Current()
	modelKey, err := c.modelForLocked(sess)
	if err != nil {
		return err
	}

	// The user message is persisted before any network activity.
	if err := c.store.Append(sess.ID, model.NewUserMessage(text, c.clock.Now())); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	sess, err = c.store.Get(sess.ID)
	if err != nil {
		return err
	}

	c.failed = nil
	req := cloud.Request{Model: modelKey, Mode: c.mode, History: sess.History()}
	c.startLocked(req, Draft{SessionID: sess.ID})
	return nil
}

// Cancel aborts the active request and discards its draft. The store is
// left untouched. It reports whether anything was cancelled.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Active() {
		return false
	}
	c.cancelLocked()
	return true
}

// Retry replays the request that last failed, after removing the failure
// notice it left behind.
func (c *Controller) Retry() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Active() {
		return ErrBusy
	}
	p := c.failed
	if p == nil || !c.store.Has(p.draft.SessionID) {
		return ErrNothingToRetry
	}
	if _, err := c.store.DropTrailingNotice(p.draft.SessionID); err != nil {
		return fmt.Errorf("failed to remove notice: %w", err)
	}

	c.failed = nil
	draft := p.draft
	draft.Text = ""
	draft.Stalled = false
	c.startLocked(p.req.Clone(), draft)
	return nil
}

// Continue asks the model to extend a partial reply. From Interrupted it
// abandons the stalled request and continues its draft. From Idle it
// continues the last reply when that reply left a code fence open. New
// text is appended to the visible reply.
func (c *Controller) Continue() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Interrupted:
		d := *c.draft
		modelKey := c.last.req.Model
		c.abortLocked()

		sess, err := c.store.Get(d.SessionID)
		if err != nil {
			c.toIdleLocked()
			return err
		}
		history := sess.History()
		if d.Replaces && len(history) > 0 {
			history = history[:len(history)-1]
		}
		c.startLocked(c.continuation(modelKey, history, d.Content()),
			Draft{SessionID: d.SessionID, Base: d.Content(), Replaces: d.Replaces})
		return nil

	case Idle:
		sess, ok := c.unterminatedReplyLocked()
		if !ok {
			return ErrNothingToContinue
		}
		modelKey, err := c.modelForLocked(sess)
		if err != nil {
			return err
		}
		history := sess.History()
		prior := history[len(history)-1].Content
		c.failed = nil
		c.startLocked(c.continuation(modelKey, history[:len(history)-1], prior),
			Draft{SessionID: sess.ID, Base: prior, Replaces: true})
		return nil
	}
	return ErrNothingToContinue
}

func (c *Controller) continuation(modelKey string, history []model.Message, prior string) cloud.Request {
	now := c.clock.Now()
	h := make([]model.Message, 0, len(history)+2)
	h = append(h, history...)
	h = append(h, model.NewAssistantMessage(prior, now), model.NewUserMessage(ContinuePrompt, now))
	return cloud.Request{Model: modelKey, Mode: c.mode, History: h}
}

// unterminatedReplyLocked returns the current session when its last
// message is an assistant reply with an odd number of fences.
func (c *Controller) unterminatedReplyLocked() (*model.Session, bool) {
	sess := c.store.Current()
	last, ok := sess.Last()
	if !ok || !last.IsAssistant() || !render.Unterminated(last.Content) {
		return nil, false
	}
	return sess, true
}

func (c *Controller) modelForLocked(sess *model.Session) (string, error) {
	key := sess.Model
	if key == "" {
		key = c.registry.DefaultID()
	}
	if _, err := c.registry.Get(key); err != nil {
		return "", err
	}
	return key, nil
}

// startLocked issues req and starts consuming its stream.
func (c *Controller) startLocked(req cloud.Request, draft Draft) {
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.draft = &draft
	c.last = &pending{req: req.Clone(), draft: draft}
	if !c.state.Active() {
		c.idle = make(chan struct{})
	}
	c.setStateLocked(Sending)

	c.logger.Debug("request started",
		slog.String("session", draft.SessionID),
		slog.String("model", req.Model),
		slog.Int("history", len(req.History)),
		slog.Bool("continuation", draft.Base != ""))

	h := c.client.Complete(ctx, req)
	go c.consume(gen, h)
}

// consume applies a request's events in order. Events from a superseded
// request are drained and dropped.
func (c *Controller) consume(gen uint64, h *cloud.StreamHandle) {
	for ev := range h.Events() {
		c.mu.Lock()
		if c.gen == gen {
			c.applyLocked(gen, ev)
		}
		c.mu.Unlock()
	}

	<-h.Done()
	err := h.Err()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	c.stopTimerLocked()

	switch {
	case err == nil:
		c.finalizeLocked()
	case cloud.IsAbort(err):
		c.discardLocked()
	default:
		c.failLocked(err)
	}
}

func (c *Controller) applyLocked(gen uint64, ev cloud.Event) {
	switch ev.Kind {
	case cloud.EventDelta:
		c.draft.Text += ev.Text
		c.draft.Stalled = false
		if c.state != Streaming {
			c.setStateLocked(Streaming)
		}
		c.armSilenceLocked(gen)
		c.emit(Event{Kind: EventDelta, Draft: *c.draft})

	case cloud.EventRestart:
		c.logger.Warn("request restarting",
			slog.Int("attempt", ev.Attempt), slog.Any("error", ev.Err))
		c.stopTimerLocked()
		c.draft.Text = ""
		c.draft.Stalled = false
		if c.state != Sending {
			c.setStateLocked(Sending)
		}
		c.emit(Event{Kind: EventRestart, Draft: *c.draft, Err: ev.Err})
	}
}

// finalizeLocked commits a non-empty reply and titles a new conversation.
func (c *Controller) finalizeLocked() {
	c.setStateLocked(Finalizing)
	d := *c.draft
	content := d.Content()

	if d.Text != "" && strings.TrimSpace(content) != "" {
		msg := model.NewAssistantMessage(content, c.clock.Now())
		var err error
		if d.Replaces {
			err = c.store.ReplaceLast(d.SessionID, msg)
		} else {
			err = c.store.Append(d.SessionID, msg)
		}
		if err != nil {
			c.logger.Error("failed to commit reply", slog.String("session", d.SessionID), slog.Any("error", err))
			c.emit(Event{Kind: EventFailed, SessionID: d.SessionID, Err: err})
		} else {
			c.emit(Event{Kind: EventCommitted, SessionID: d.SessionID, Message: msg})
			if !d.Replaces {
				c.deriveTitleLocked(d.SessionID, content)
			}
		}
	}
	c.toIdleLocked()
}

func (c *Controller) deriveTitleLocked(id, reply string) {
	sess, err := c.store.Get(id)
	if err != nil || sess.ConversationLen() != 2 {
		return
	}
	title := model.DeriveTitle(reply)
	if title == "" {
		return
	}
	if err := c.store.Rename(id, title); err != nil {
		c.logger.Warn("failed to set title", slog.String("session", id), slog.Any("error", err))
		return
	}
	c.emit(Event{Kind: EventTitle, SessionID: id, Title: title})
}

// failLocked records a failed request, appends the failure notice and
// makes the request available to Retry.
func (c *Controller) failLocked(err error) {
	d := *c.draft
	c.logger.Warn("request failed", slog.String("session", d.SessionID), slog.Any("error", err))

	c.failed = c.last
	if nerr := c.store.Append(d.SessionID, model.NewNotice(FailureNotice, c.clock.Now())); nerr != nil {
		c.logger.Error("failed to save notice", slog.Any("error", nerr))
	}
	c.emit(Event{Kind: EventFailed, SessionID: d.SessionID, Err: err})
	c.toIdleLocked()
}

// discardLocked drops the draft of a request aborted from outside.
func (c *Controller) discardLocked() {
	sid := c.draft.SessionID
	c.emit(Event{Kind: EventCancelled, SessionID: sid})
	c.toIdleLocked()
}

// cancelLocked aborts the active request on the user's behalf.
func (c *Controller) cancelLocked() {
	sid := ""
	if c.draft != nil {
		sid = c.draft.SessionID
	}
	c.abortLocked()
	c.emit(Event{Kind: EventCancelled, SessionID: sid})
	c.toIdleLocked()
}

// abortLocked cancels the request and orphans its consumer.
func (c *Controller) abortLocked() {
	c.gen++
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) toIdleLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.draft = nil
	c.setStateLocked(Idle)
	select {
	case <-c.idle:
	default:
		close(c.idle)
	}
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	ev := Event{Kind: EventState, State: s}
	if c.draft != nil {
		ev.SessionID = c.draft.SessionID
		ev.Draft = *c.draft
	}
	c.emit(ev)
}

func (c *Controller) emit(ev Event) {
	if ev.Kind != EventState {
		ev.State = c.state
	}
	c.notify.publish(ev)
}

// =============================================================================
// SILENCE TIMER
// =============================================================================

func (c *Controller) armSilenceLocked(gen uint64) {
	c.stopTimerLocked()
	seq := c.armed
	c.timer = c.clock.AfterFunc(c.silence, func() { c.onSilence(gen, seq) })
}

// stopTimerLocked also invalidates a callback that already fired and is
// waiting for c.mu.
func (c *Controller) stopTimerLocked() {
	c.armed++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) onSilence(gen, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.armed != seq || c.state != Streaming {
		return
	}
	c.timer = nil
	c.draft.Stalled = true
	c.logger.Info("stream interrupted", slog.String("session", c.draft.SessionID), slog.Duration("silence", c.silence))
	c.setStateLocked(Interrupted)
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

// NewSession creates a session for the preferred model and makes it
// current. An active request is cancelled first.
func (c *Controller) NewSession() (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelIfActiveLocked()

	sess, err := c.store.Create(c.store.Preferences().Model)
	if err != nil {
		return nil, err
	}
	if err := c.store.SetCurrent(sess.ID); err != nil {
		return nil, err
	}
	c.failed = nil
	c.emit(Event{Kind: EventSessions, SessionID: sess.ID})
	return sess, nil
}

// Switch makes id the current session. An active request is cancelled.
func (c *Controller) Switch(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.store.Has(id) {
		return storage.ErrSessionNotFound
	}
	c.cancelIfActiveLocked()
	if err := c.store.SetCurrent(id); err != nil {
		return err
	}
	c.failed = nil
	c.emit(Event{Kind: EventSessions, SessionID: id})
	return nil
}

// Delete removes a session. A request streaming into it is cancelled.
// Deleting the current session moves to another or a fresh one.
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft != nil && c.draft.SessionID == id {
		c.cancelLocked()
	}
	if err := c.store.Remove(id); err != nil {
		return err
	}
	if c.failed != nil && c.failed.draft.SessionID == id {
		c.failed = nil
	}
	c.emit(Event{Kind: EventSessions, SessionID: c.store.CurrentID()})
	return nil
}

// ClearAll deletes every session and starts a fresh one.
func (c *Controller) ClearAll() (*model.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelIfActiveLocked()
	sess, err := c.store.Clear()
	if err != nil {
		return nil, err
	}
	c.failed = nil
	c.emit(Event{Kind: EventSessions, SessionID: sess.ID})
	return sess, nil
}

// SetModel switches the current session to the model named by key (a key
// or display name) and remembers it for new sessions.
func (c *Controller) SetModel(name string) (string, error) {
	key, err := c.registry.Resolve(name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.store.CurrentID()
	if err := c.store.SetModel(id, key); err != nil {
		return "", err
	}
	prefs := c.store.Preferences()
	prefs.Model = key
	if err := c.store.SavePreferences(prefs); err != nil {
		return "", err
	}
	c.emit(Event{Kind: EventSessions, SessionID: id})
	return key, nil
}

// SetVerbosity sets and persists the verbosity mode for future requests.
func (c *Controller) SetVerbosity(mode registry.Mode) error {
	if _, err := registry.ParseMode(string(mode)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	prefs := c.store.Preferences()
	prefs.Verbosity = string(mode)
	if err := c.store.SavePreferences(prefs); err != nil {
		return err
	}
	c.mode = mode
	return nil
}

func (c *Controller) cancelIfActiveLocked() {
	if c.state.Active() {
		c.cancelLocked()
	}
}
