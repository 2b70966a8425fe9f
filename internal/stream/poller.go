package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stockpulse/stockpulse/internal/event"
)

const defaultPollInterval = 3 * time.Second

// Fetcher reads events past a cursor from the event read boundary.
type Fetcher interface {
	FetchSince(ctx context.Context, cursor uint64) ([]event.Event, error)
}

// Sender posts outbound messages to the command boundary.
type Sender interface {
	Send(ctx context.Context, env event.Envelope) error
}

// PollerConfig tunes the replay transport.
type PollerConfig struct {
	Interval time.Duration
	// Cursor is the starting watermark; zero replays from the beginning
	// of the log.
	Cursor uint64
	// Clock overrides the wall clock, for tests.
	Clock Clock
}

// Poller is the pull-based replay transport. It owns a monotonic cursor
// into the event log and delivers every event whose sequence exceeds it,
// giving an at-least-once replay guarantee independent of push
// connectivity. Poll failures are reported to the handler and the
// schedule continues.
type Poller struct {
	logger  *slog.Logger
	fetcher Fetcher
	sender  Sender
	handler Handler
	cfg     PollerConfig
	clock   Clock

	mu     sync.Mutex
	cursor uint64
}

// NewPoller constructs a replay transport.
func NewPoller(logger *slog.Logger, fetcher Fetcher, sender Sender, handler Handler, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultPollInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Poller{
		logger:  logger,
		fetcher: fetcher,
		sender:  sender,
		handler: handler,
		cfg:     cfg,
		clock:   clock,
		cursor:  cfg.Cursor,
	}
}

// Cursor reports the current watermark. It never decreases.
func (p *Poller) Cursor() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// PollOnce fetches events past the cursor, delivers them in order and
// advances the cursor to the highest sequence observed. An empty result
// leaves the cursor unchanged. The returned events are for callers that
// want a synchronous view; delivery to the handler already happened.
func (p *Poller) PollOnce(ctx context.Context) []event.Event {
	events, err := p.fetcher.FetchSince(ctx, p.Cursor())
	if err != nil {
		p.logger.Warn("poll failed", slog.Any("error", err))
		p.handler.Notify(Notification{Kind: NoteError, Reason: "poll failed", Err: err})
		return nil
	}
	for _, ev := range events {
		env, err := event.Wrap(ev)
		if err != nil {
			p.logger.Error("encode polled event", slog.Uint64("sequence", ev.Sequence), slog.Any("error", err))
			continue
		}
		p.handler.Notify(Notification{Kind: NoteMessage, Envelope: env})
		p.mu.Lock()
		if ev.Sequence > p.cursor {
			p.cursor = ev.Sequence
		}
		p.mu.Unlock()
	}
	return events
}

// Run polls on the configured interval until ctx is cancelled. The next
// poll is scheduled after the previous one completes, so cycles never
// overlap.
func (p *Poller) Run(ctx context.Context) {
	for {
		p.PollOnce(ctx)
		if p.clock.Sleep(ctx, p.cfg.Interval) != nil {
			return
		}
	}
}

// Send posts an outbound message through the command boundary, for
// symmetry with the push transport. Failures are reported to the
// handler, never returned.
func (p *Poller) Send(ctx context.Context, env event.Envelope) {
	if p.sender == nil {
		p.handler.Notify(Notification{Kind: NoteError, Reason: "no sender configured"})
		return
	}
	if err := p.sender.Send(ctx, env); err != nil {
		p.handler.Notify(Notification{Kind: NoteError, Reason: "send failed", Err: err})
	}
}
