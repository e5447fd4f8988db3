// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/jeranaias/codecraft-tui/internal/clock"
	"github.com/jeranaias/codecraft-tui/internal/model"
	"github.com/jeranaias/codecraft-tui/internal/registry"
)

// Configuration constants for the completion service.
const (
	// DefaultEndpoint is the OpenRouter chat completions URL.
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultOrigin is sent as HTTP-Referer when none is configured.
	DefaultOrigin = "https://codecraft.local"

	// DefaultSiteName is sent as X-Title.
	DefaultSiteName = "codecraft"

	// DefaultHeaderTimeout bounds the wait for response headers. The body
	// itself is only bounded by the caller's context.
	DefaultHeaderTimeout = 60 * time.Second

	// maxErrorBody limits how much of a failed response is read.
	maxErrorBody = 64 * 1024
)

// =============================================================================
// REQUEST
// =============================================================================

// Request identifies what to complete: the model key, the verbosity mode
// for the system prompt, and the conversation so far.
type Request struct {
	Model   string
	Mode    registry.Mode
	History []model.Message
}

// Clone returns a copy whose History can be extended without aliasing.
func (r Request) Clone() Request {
	c := r
	c.History = make([]model.Message, len(r.History))
	copy(c.History, r.History)
	return c
}

// =============================================================================
// CLIENT
// =============================================================================

// Client issues streaming chat completions against an OpenAI-compatible
// endpoint, retrying transport failures with exponential backoff.
type Client struct {
	apiKey     string
	endpoint   string
	origin     string
	siteName   string
	httpClient *http.Client
	registry   *registry.Registry
	backoff    BackoffPolicy
	clock      clock.Clock
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client for the given API key and model catalog.
// An empty key is allowed; Complete then fails with ErrNotConfigured.
func NewClient(apiKey string, reg *registry.Registry) *Client {
	return &Client{
		apiKey:   strings.TrimSpace(apiKey),
		endpoint: DefaultEndpoint,
		origin:   DefaultOrigin,
		siteName: DefaultSiteName,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: DefaultHeaderTimeout,
			},
			// No overall timeout: streams are bounded by the context.
		},
		registry: reg,
		backoff:  DefaultBackoff(),
		clock:    clock.Real(),
		logger:   slog.Default(),
	}
}

// WithEndpoint sets the chat completions URL.
func (c *Client) WithEndpoint(url string) *Client {
	if url != "" {
		c.endpoint = url
	}
	return c
}

// WithOrigin sets the HTTP-Referer sent with every request.
func (c *Client) WithOrigin(origin string) *Client {
	c.origin = origin
	return c
}

// WithSiteName sets the X-Title header.
func (c *Client) WithSiteName(name string) *Client {
	c.siteName = name
	return c
}

// WithHeaderTimeout bounds the wait for response headers.
func (c *Client) WithHeaderTimeout(d time.Duration) *Client {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok && d > 0 {
		t.ResponseHeaderTimeout = d
	}
	return c
}

// WithHTTPClient replaces the HTTP client (tests use httptest servers).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithBackoff sets the retry policy.
func (c *Client) WithBackoff(p BackoffPolicy) *Client {
	c.backoff = p
	return c
}

// WithClock sets the clock used for backoff waits.
func (c *Client) WithClock(clk clock.Clock) *Client {
	c.clock = clk
	return c
}

// WithRateLimit spaces requests to at most perMinute per minute. Zero or a
// negative value disables limiting.
func (c *Client) WithRateLimit(perMinute int) *Client {
	if perMinute <= 0 {
		c.limiter = nil
		return c
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	return c
}

// WithLogger sets the structured logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l != nil {
		c.logger = l
	}
	return c
}

// IsConfigured returns true if an API key is set.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// Endpoint returns the configured completions URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// =============================================================================
// COMPLETION
// =============================================================================

// Complete starts a streaming completion and returns immediately. ctx is
// the cancellation token: cancelling it aborts the transport and ends the
// handle with *AbortError. Transport failures are retried per the backoff
// policy; each retry emits EventRestart first.
func (c *Client) Complete(ctx context.Context, req Request) *StreamHandle {
	h := NewStreamHandle(ctx)
	go c.run(ctx, req, h)
	return h
}

func (c *Client) run(ctx context.Context, req Request, h *StreamHandle) {
	if !c.IsConfigured() {
		h.Finish("", ErrNotConfigured)
		return
	}
	body, err := c.buildBody(req)
	if err != nil {
		h.Finish("", err)
		return
	}

	attempts := c.backoff.Attempts()
	var lastErr *TransportError
	var text string

	for attempt := 1; attempt <= attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				h.Finish("", &AbortError{Err: stopErr(ctx)})
				return
			}
		}

		text, err = c.attempt(ctx, body, h)
		if err == nil {
			h.Finish(text, nil)
			return
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			h.Finish(text, &AbortError{Partial: text, Err: stopErr(ctx)})
			return
		}

		lastErr = asTransport(err)
		lastErr.Attempts = attempt
		if attempt == attempts {
			break
		}

		delay := c.backoff.Delay(attempt)
		c.logger.Warn("completion attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"model", req.Model,
			"error", lastErr.Err)

		if !h.Emit(Event{Kind: EventRestart, Attempt: attempt + 1, Err: lastErr}) {
			h.Finish("", &AbortError{Err: stopErr(ctx)})
			return
		}
		// Deliberate cancellation short-circuits the pending retry.
		if ctx.Err() != nil {
			h.Finish("", &AbortError{Err: ctx.Err()})
			return
		}
		select {
		case <-ctx.Done():
			h.Finish("", &AbortError{Err: ctx.Err()})
			return
		case <-c.clock.After(delay):
		}
	}

	h.Finish(text, lastErr)
}

// attempt performs one request and streams its body into h.
func (c *Client) attempt(ctx context.Context, body []byte, h *StreamHandle) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	start := c.clock.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("completion response",
		"status", resp.StatusCode,
		"latency", c.clock.Now().Sub(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", statusError(resp.StatusCode, data)
	}

	var text strings.Builder
	err = Reassemble(ctx, resp.Body, c.logger, func(delta string) bool {
		text.WriteString(delta)
		return h.Emit(Event{Kind: EventDelta, Text: delta})
	})
	if err != nil {
		if ctx.Err() != nil {
			return text.String(), ctx.Err()
		}
		return text.String(), &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("stream interrupted: %w", err)}
	}
	return text.String(), nil
}

// setHeaders sets the required headers for completion requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.origin != "" {
		req.Header.Set("HTTP-Referer", c.origin)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

// buildBody renders the outbound JSON: the system prompt followed by the
// user and assistant turns of the history. Notices are never sent.
func (c *Client) buildBody(req Request) ([]byte, error) {
	m, err := c.registry.Get(req.Model)
	if err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: m.SystemPrompt(req.Mode),
	})
	for _, msg := range req.History {
		switch msg.Role {
		case model.RoleUser:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Content})
		case model.RoleAssistant:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content})
		}
	}

	body := openai.ChatCompletionRequest{
		Model:            m.ID,
		Messages:         messages,
		Temperature:      m.Temperature,
		TopP:             m.TopP,
		MaxTokens:        m.OutputBudget(),
		PresencePenalty:  m.PresencePenalty,
		FrequencyPenalty: m.FrequencyPenalty,
		Stream:           true,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func asTransport(err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Err: err}
}
