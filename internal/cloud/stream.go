// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// maxRecordSize bounds a single buffered line. A line that grows past it
// without a newline is treated as malformed and dropped.
const maxRecordSize = 1 << 20

const readBufferSize = 4096

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// =============================================================================
// STREAM HANDLE
// =============================================================================

// EventKind distinguishes stream events.
type EventKind int

const (
	// EventDelta carries the next piece of assistant text.
	EventDelta EventKind = iota
	// EventRestart means the previous attempt failed and is being retried;
	// any text from it must be discarded.
	EventRestart
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// Event is one item on a StreamHandle.
type Event struct {
	Kind    EventKind
	Text    string // delta text
	Attempt int    // attempt about to start, for EventRestart
	Err     error  // failure that caused the restart
}

// StreamHandle is the caller's view of one in-flight completion. Events
// arrive in order; the channel closes when the request ends, after which
// Err and Text are final.
type StreamHandle struct {
	ctx    context.Context
	events chan Event
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	text string
	err  error
}

// NewStreamHandle creates a handle bound to ctx. Producers push with Emit
// and end with Finish. The completion client is the usual producer.
func NewStreamHandle(ctx context.Context) *StreamHandle {
	return &StreamHandle{
		ctx:    ctx,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
}

// Events returns the ordered event channel.
func (h *StreamHandle) Events() <-chan Event { return h.events }

// Done is closed once the stream has finished.
func (h *StreamHandle) Done() <-chan struct{} { return h.done }

// Err returns nil, *TransportError, *AbortError or a setup error. It is
// only meaningful after Done is closed.
func (h *StreamHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Text returns the text received by the final attempt.
func (h *StreamHandle) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.text
}

// Emit delivers ev, blocking while the buffer is full. It returns false if
// the handle's context was cancelled first.
func (h *StreamHandle) Emit(ev Event) bool {
	select {
	case <-h.ctx.Done():
		return false
	default:
	}
	select {
	case h.events <- ev:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Finish records the outcome and closes the event channel. Calls after the
// first are ignored.
func (h *StreamHandle) Finish(text string, err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.text = text
		h.err = err
		h.mu.Unlock()
		close(h.events)
		close(h.done)
	})
}

// Collect drains the handle and returns the final text and error. Text
// from failed attempts is dropped on restart.
func (h *StreamHandle) Collect() (string, error) {
	var buf bytes.Buffer
	for ev := range h.events {
		switch ev.Kind {
		case EventDelta:
			buf.WriteString(ev.Text)
		case EventRestart:
			buf.Reset()
		}
	}
	if err := h.Err(); err != nil {
		return buf.String(), err
	}
	return buf.String(), nil
}

// =============================================================================
// REASSEMBLER
// =============================================================================

// Reassembler turns arbitrarily split chunks of an SSE body into text
// deltas. It buffers partial lines, ignores non-data fields and comments,
// and drops records whose payload does not decode.
type Reassembler struct {
	buf       []byte
	done      bool
	malformed int
	logger    *slog.Logger
}

// NewReassembler creates a reassembler. A nil logger uses slog.Default.
func NewReassembler(logger *slog.Logger) *Reassembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reassembler{logger: logger}
}

// Feed consumes one chunk and returns the deltas completed by it. done is
// true once the [DONE] sentinel has been seen; later input is ignored.
func (r *Reassembler) Feed(chunk []byte) (deltas []string, done bool) {
	if r.done {
		return nil, true
	}
	r.buf = append(r.buf, chunk...)

	for {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			break
		}
		line := r.buf[:i]
		r.buf = r.buf[i+1:]

		delta, end := r.parseLine(line)
		if delta != "" {
			deltas = append(deltas, delta)
		}
		if end {
			r.done = true
			r.buf = nil
			return deltas, true
		}
	}

	if len(r.buf) > maxRecordSize {
		r.reject(r.buf[:64], errRecordTooLarge)
		r.buf = nil
	}
	// Compact so a long stream does not pin its whole history.
	if cap(r.buf) > 4*readBufferSize && len(r.buf) < readBufferSize {
		r.buf = append([]byte(nil), r.buf...)
	}
	return deltas, false
}

// Flush makes one final attempt to parse whatever is left in the buffer
// when the transport ends without a trailing newline.
func (r *Reassembler) Flush() []string {
	if r.done || len(bytes.TrimSpace(r.buf)) == 0 {
		r.buf = nil
		return nil
	}
	line := r.buf
	r.buf = nil
	delta, end := r.parseLine(line)
	if end {
		r.done = true
	}
	if delta == "" {
		return nil
	}
	return []string{delta}
}

// Done reports whether the end sentinel was seen.
func (r *Reassembler) Done() bool { return r.done }

// Malformed returns how many records were dropped.
func (r *Reassembler) Malformed() int { return r.malformed }

func (r *Reassembler) parseLine(line []byte) (string, bool) {
	line = bytes.TrimRight(line, "\r")
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return "", false
	}
	if !bytes.HasPrefix(trimmed, dataPrefix) {
		// event:, id:, retry: and ": keep-alive" comments
		return "", false
	}

	payload := bytes.TrimSpace(trimmed[len(dataPrefix):])
	if bytes.Equal(payload, doneMarker) {
		return "", true
	}
	if len(payload) == 0 {
		return "", false
	}

	var chunk openai.ChatCompletionStreamResponse
	if err := json.Unmarshal(payload, &chunk); err != nil {
		r.reject(payload, err)
		return "", false
	}
	if len(chunk.Choices) == 0 {
		return "", false
	}
	return chunk.Choices[0].Delta.Content, false
}

func (r *Reassembler) reject(record []byte, err error) {
	r.malformed++
	mre := &MalformedRecordError{Record: string(record), Err: err}
	r.logger.Debug("skipping malformed stream record", "error", mre)
}

type reassemblerError string

func (e reassemblerError) Error() string { return string(e) }

const errRecordTooLarge = reassemblerError("record exceeds maximum size")

// Reassemble reads body until the end sentinel, EOF, cancellation, or a
// read error. emit receives each non-empty delta in order; returning false
// stops the read. On cancellation it returns ctx.Err() and everything
// already passed to emit stays with the caller.
func Reassemble(ctx context.Context, body io.Reader, logger *slog.Logger, emit func(string) bool) error {
	ra := NewReassembler(logger)
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := body.Read(buf)
		if n > 0 {
			deltas, done := ra.Feed(buf[:n])
			for _, d := range deltas {
				if !emit(d) {
					return stopErr(ctx)
				}
			}
			if done {
				return nil
			}
		}

		if err == io.EOF {
			for _, d := range ra.Flush() {
				if !emit(d) {
					return stopErr(ctx)
				}
			}
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}
}

func stopErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return context.Canceled
}
