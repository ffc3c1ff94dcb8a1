// Package poll runs the background loop that checks watched accounts for
// new tweets and fires one hook event per tweet discovered.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"twitter-watcher/pkg/watcher"
)

const (
	// DefaultInterval is the poll cadence when nothing else is configured.
	DefaultInterval = 120 * time.Second

	// MinInterval is the floor for SetIntervalSeconds.
	MinInterval = 30 * time.Second

	// firstTickDelay schedules the first tick shortly after startup so a
	// fresh process becomes useful without waiting a full interval.
	firstTickDelay = 10 * time.Second
)

// ErrBelowMinimum is returned when a requested interval is under the floor.
var ErrBelowMinimum = errors.New("poll interval below minimum")

// ErrDisabled is returned by Tick when no feed source is configured.
var ErrDisabled = errors.New("poller disabled: no Twitter credentials")

// Feed fetches recent tweets for an account. An empty sinceID means
// "most recent tweets, unconstrained". Results arrive newest-first.
type Feed interface {
	RecentTweets(ctx context.Context, userID, sinceID string) ([]watcher.Tweet, error)
}

// Watchlist is the registry view the poller needs.
type Watchlist interface {
	Snapshot() []watcher.Account
	Advance(handle, sinceID string) bool
}

// Dispatcher delivers one event per newly discovered tweet.
type Dispatcher interface {
	Deliver(ctx context.Context, ev watcher.Event) error
}

// Poller owns the background loop. The interval may be changed while the
// loop runs; a change takes effect at the next wait, never mid-tick.
type Poller struct {
	feed       Feed
	list       Watchlist
	dispatcher Dispatcher
	logger     *slog.Logger
	checkpoint func(ctx context.Context)

	mu       sync.Mutex
	interval time.Duration
	lastTick time.Time

	tickMu sync.Mutex // serializes ticks (loop vs manual trigger)
}

// Config holds poller configuration.
type Config struct {
	Feed       Feed
	Watchlist  Watchlist
	Dispatcher Dispatcher
	Logger     *slog.Logger
	Interval   time.Duration             // 0 means DefaultInterval
	Checkpoint func(ctx context.Context) // optional, called after ticks that advanced a watermark
}

// New creates a new poller.
func New(cfg *Config) *Poller {
	interval := cfg.Interval
	if interval < MinInterval {
		interval = DefaultInterval
	}
	return &Poller{
		feed:       cfg.Feed,
		list:       cfg.Watchlist,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
		checkpoint: cfg.Checkpoint,
		interval:   interval,
	}
}

// Enabled reports whether the poller has a feed source to poll.
func (p *Poller) Enabled() bool {
	return p.feed != nil
}

// IntervalSeconds returns the current poll interval in whole seconds.
func (p *Poller) IntervalSeconds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int(p.interval / time.Second)
}

// SetIntervalSeconds updates the poll cadence for subsequent ticks.
// Values under the floor are rejected; the current interval is unchanged.
func (p *Poller) SetIntervalSeconds(seconds int) error {
	d := time.Duration(seconds) * time.Second
	if d < MinInterval {
		return ErrBelowMinimum
	}

	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()

	p.logger.Info("Poll interval updated", "interval", d.String())
	return nil
}

// LastTick returns when the most recent tick completed, zero before the
// first one.
func (p *Poller) LastTick() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTick
}

// Run executes the seeding pass and then polls until ctx is cancelled.
// Cancellation is observed at every wait, so shutdown latency is bounded
// by the sleep granularity rather than a full tick.
func (p *Poller) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Warn("Twitter credentials not configured, poller disabled")
		return
	}

	p.logger.Info("Poller started", "interval", (time.Duration(p.IntervalSeconds()) * time.Second).String())
	p.seed(ctx)

	delay := firstTickDelay
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped", "reason", ctx.Err())
			return
		case <-time.After(delay):
		}

		if err := p.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("Poller stopped", "reason", ctx.Err())
				return
			}
			p.logger.Error("Poll tick failed", "error", err)
		}

		p.mu.Lock()
		delay = p.interval
		p.mu.Unlock()
	}
}

// Tick polls every watched account once. A single account's failure never
// aborts the tick for the others; only context cancellation does.
func (p *Poller) Tick(ctx context.Context) error {
	if !p.Enabled() {
		return ErrDisabled
	}

	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	accounts := p.list.Snapshot()
	advanced := false

	for _, acct := range accounts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.checkAccount(ctx, acct) {
			advanced = true
		}
	}

	now := time.Now().UTC()
	p.mu.Lock()
	p.lastTick = now
	p.mu.Unlock()

	p.logger.Info("Poll tick completed", "accounts", len(accounts))

	if advanced && p.checkpoint != nil {
		p.checkpoint(ctx)
	}
	return nil
}

// checkAccount handles one account within a tick and reports whether its
// watermark advanced.
func (p *Poller) checkAccount(ctx context.Context, acct watcher.Account) bool {
	// No watermark yet: seed it instead of delivering a backlog. This
	// also covers accounts whose startup seeding failed.
	if acct.SinceID == "" {
		return p.seedAccount(ctx, acct)
	}

	tweets, err := p.feed.RecentTweets(ctx, acct.UserID, acct.SinceID)
	if err != nil {
		p.logger.Warn("Tweet fetch failed", "username", acct.Handle, "error", err)
		return false
	}
	if len(tweets) == 0 {
		return false
	}

	// The platform returns newest-first; deliver oldest-first so events
	// arrive in chronological order.
	sort.Slice(tweets, func(i, j int) bool {
		return watcher.NewerID(tweets[j].ID, tweets[i].ID)
	})

	for _, tw := range tweets {
		ev := watcher.Event{
			Handle:    acct.Handle,
			UserID:    acct.UserID,
			TweetID:   tw.ID,
			TweetText: tw.Text,
			TweetURL:  watcher.TweetURL(acct.Handle, tw.ID),
			CreatedAt: tw.CreatedAt,
		}
		if err := p.dispatcher.Deliver(ctx, ev); err != nil {
			// Best effort: the tweet still counts as delivered.
			p.logger.Warn("Hook delivery failed",
				"username", acct.Handle,
				"tweet_id", tw.ID,
				"error", err)
		}
	}

	newest := tweets[len(tweets)-1].ID
	if !p.list.Advance(acct.Handle, newest) {
		p.logger.Info("Account removed during poll, dropping watermark update", "username", acct.Handle)
		return false
	}

	p.logger.Info("New tweets delivered",
		"username", acct.Handle,
		"count", len(tweets),
		"since_id", newest)
	return true
}

// seed establishes watermarks for accounts that do not have one yet, so
// only tweets posted after an account was added generate events.
func (p *Poller) seed(ctx context.Context) {
	for _, acct := range p.list.Snapshot() {
		if acct.SinceID != "" {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.seedAccount(ctx, acct)
	}
}

// seedAccount fetches the most recent tweets for an unseeded account and
// records the newest ID without emitting events. On failure the watermark
// stays empty and the next tick retries.
func (p *Poller) seedAccount(ctx context.Context, acct watcher.Account) bool {
	tweets, err := p.feed.RecentTweets(ctx, acct.UserID, "")
	if err != nil {
		p.logger.Warn("Failed to seed watermark", "username", acct.Handle, "error", err)
		return false
	}
	if len(tweets) == 0 {
		return false
	}

	newest := ""
	for _, tw := range tweets {
		if watcher.NewerID(tw.ID, newest) {
			newest = tw.ID
		}
	}

	if !p.list.Advance(acct.Handle, newest) {
		return false
	}
	p.logger.Info("Seeded watermark", "username", acct.Handle, "since_id", newest)
	return true
}
