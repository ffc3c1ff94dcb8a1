// Package hook delivers watched-tweet events to the backend hooks API.
//
// Delivery is fire-and-forget: a failed delivery is logged and dropped,
// and the caller's watermark still advances. There is deliberately no
// retry here.
package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"twitter-watcher/pkg/watcher"
)

// EventName identifies the hook fired for every new tweet discovered on a
// watched account.
const EventName = "twitter_watched_tweet"

// Provider defines the interface for hook delivery implementations.
type Provider interface {
	// Fire delivers one named event with its payload.
	Fire(ctx context.Context, event string, data any) error
}

// Dispatcher sends notification events using a pluggable provider.
type Dispatcher struct {
	provider Provider
	logger   *slog.Logger
}

// New creates a new dispatcher with the given provider.
func New(provider Provider, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		provider: provider,
		logger:   logger,
	}
}

// Deliver hands one event to the provider.
func (d *Dispatcher) Deliver(ctx context.Context, ev watcher.Event) error {
	d.logger.Info("Firing watched-tweet hook",
		"username", ev.Handle,
		"tweet_id", ev.TweetID)
	return d.provider.Fire(ctx, EventName, ev)
}

// fireRequest is the envelope the backend internal hooks API expects.
type fireRequest struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// HTTPProvider posts events to the backend internal hooks API.
type HTTPProvider struct {
	client *http.Client
	logger *slog.Logger
	url    string
	token  string
}

// NewHTTPProvider creates a provider that fires hooks against the backend
// at baseURL, authenticated with the internal token.
func NewHTTPProvider(baseURL, token string, logger *slog.Logger) *HTTPProvider {
	return &HTTPProvider{
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
		url:    baseURL + "/api/internal/hooks/fire",
		token:  token,
	}
}

// Fire posts one event. A single attempt only; the poller treats the
// event as delivered either way.
func (p *HTTPProvider) Fire(ctx context.Context, event string, data any) error {
	body, err := json.Marshal(fireRequest{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal hook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-Token", p.token)

	startTime := time.Now()
	resp, err := p.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		return fmt.Errorf("fire hook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fire hook: HTTP %d", resp.StatusCode)
	}

	p.logger.Debug("Hook fired",
		"event", event,
		"duration_ms", duration.Milliseconds())
	return nil
}

// MockProvider logs events instead of delivering them, for local
// development without a backend.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock hook provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{
		logger: logger,
	}
}

// Fire logs the event instead of sending it.
func (m *MockProvider) Fire(_ context.Context, event string, data any) error {
	m.logger.Info("MOCK HOOK",
		"event", event,
		"data", data)
	return nil
}
