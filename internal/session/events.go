// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/codecraft-tui/internal/model"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what an Event reports.
type EventKind int

const (
	// EventState reports a state transition.
	EventState EventKind = iota
	// EventDelta reports that the draft grew.
	EventDelta
	// EventRestart reports that a retry discarded the draft's new text.
	EventRestart
	// EventCommitted reports an assistant message written to the store.
	EventCommitted
	// EventTitle reports a derived session title.
	EventTitle
	// EventFailed reports a failed request; a notice was appended when Err
	// is a transport failure.
	EventFailed
	// EventCancelled reports a request abandoned by the user.
	EventCancelled
	// EventSessions reports a change to the session list or the current
	// session.
	EventSessions
)

var eventKindNames = map[EventKind]string{
	EventState:     "state",
	EventDelta:     "delta",
	EventRestart:   "restart",
	EventCommitted: "committed",
	EventTitle:     "title",
	EventFailed:    "failed",
	EventCancelled: "cancelled",
	EventSessions:  "sessions",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a controller notification. Fields beyond Kind, State and
// SessionID are set only for the kinds that carry them.
type Event struct {
	Kind      EventKind
	State     State
	SessionID string
	Draft     Draft
	Message   model.Message
	Title     string
	Err       error
}

// =============================================================================
// NOTIFIER
// =============================================================================

// notifier delivers events to observers in order from one goroutine.
// Publishing never blocks.
type notifier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	subs   map[int]func(Event)
	nextID int
	busy   bool
	closed bool
}

func newNotifier() *notifier {
	n := &notifier{subs: make(map[int]func(Event))}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, ev)
	n.cond.Broadcast()
}

func (n *notifier) subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// drain blocks until every published event has been delivered.
func (n *notifier) drain() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for len(n.queue) > 0 || n.busy {
		n.cond.Wait()
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	n.cond.Broadcast()
}

func (n *notifier) run() {
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		ev := n.queue[0]
		n.queue = n.queue[1:]
		subs := make([]func(Event), 0, len(n.subs))
		for id := 0; id < n.nextID; id++ {
			if fn, ok := n.subs[id]; ok {
				subs = append(subs, fn)
			}
		}
		n.busy = true
		n.mu.Unlock()

		for _, fn := range subs {
			fn(ev)
		}

		n.mu.Lock()
		n.busy = false
		n.cond.Broadcast()
		n.mu.Unlock()
	}
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// EventMsg wraps an Event for a Bubble Tea program.
type EventMsg Event

// Channel subscribes a channel to the controller's events. Delivery blocks
// the dispatcher, so the reader must keep up. Call the returned function to
// unsubscribe; the channel is not closed.
func (c *Controller) Channel(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
	unsubscribe := c.Subscribe(func(ev Event) { ch <- ev })
	return ch, unsubscribe
}

// WaitForEvent returns a command that delivers the next event from ch as
// an EventMsg.
func WaitForEvent(ch <-chan Event) tea.Cmd {
	return func() tea.Msg {
		return EventMsg(<-ch)
	}
}
