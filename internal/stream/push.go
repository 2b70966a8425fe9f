package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stockpulse/stockpulse/internal/event"
)

const (
	defaultMaxAttempts = 8
	defaultRetryDelay  = 3 * time.Second
)

// Conn is one established push connection.
type Conn interface {
	ReadEnvelope() (event.Envelope, error)
	WriteEnvelope(event.Envelope) error
	Close() error
}

// Dialer opens push connections. Injected so the reconnect machine is
// testable without a network.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// ClientConfig tunes the push client.
type ClientConfig struct {
	URL string
	// MaxAttempts bounds consecutive failed connection attempts before
	// the client transitions to StateAbandoned.
	MaxAttempts int
	// RetryDelay is the base delay between attempts.
	RetryDelay time.Duration
	// Exponential switches from a constant retry delay to exponential
	// backoff capped at ten times RetryDelay.
	Exponential bool
	// Clock overrides the wall clock, for tests.
	Clock Clock
}

// Client is the push transport's connection state machine:
//
//	Idle → Connecting → Open → Closed → Connecting → … → Abandoned
//
// Every transition and inbound message is surfaced through the handler;
// nothing escapes the connect/send boundary as an error or panic. Once
// Abandoned the client makes no further automatic attempts; recovery is
// a fresh Run call or the polling fallback.
type Client struct {
	logger  *slog.Logger
	dialer  Dialer
	handler Handler
	cfg     ClientConfig
	clock   Clock

	mu       sync.Mutex
	state    State
	attempts int
	conn     Conn
	lastMsg  *event.Envelope
}

// NewClient constructs a push client in StateIdle.
func NewClient(logger *slog.Logger, dialer Dialer, handler Handler, cfg ClientConfig) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &Client{
		logger:  logger,
		dialer:  dialer,
		handler: handler,
		cfg:     cfg,
		clock:   clock,
		state:   StateIdle,
	}
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastMessage returns the most recent inbound envelope, nil when none
// was received or the client has been abandoned.
func (c *Client) LastMessage() *event.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMsg
}

// Run drives the state machine until the retry budget is exhausted or
// ctx is cancelled. It blocks; run it in its own goroutine.
func (c *Client) Run(ctx context.Context) {
	bo := c.newBackOff()
	for {
		if ctx.Err() != nil {
			return
		}
		c.transition(StateConnecting, "")
		conn, err := c.dialer.Dial(ctx, c.cfg.URL)
		if err != nil {
			c.transition(StateClosed, err.Error())
			if c.recordFailure() {
				c.abandon()
				return
			}
			if c.clock.Sleep(ctx, bo.NextBackOff()) != nil {
				return
			}
			continue
		}

		c.opened(conn)
		bo.Reset()
		reason := c.readLoop(ctx, conn)
		c.closed(conn, reason)
		if ctx.Err() != nil {
			return
		}
		if c.clock.Sleep(ctx, bo.NextBackOff()) != nil {
			return
		}
	}
}

// Send writes an envelope on the open connection. Failures are reported
// through the handler, never returned.
func (c *Client) Send(env event.Envelope) {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()
	if state != StateOpen || conn == nil {
		c.handler.Notify(Notification{Kind: NoteError, Reason: "send while not connected"})
		return
	}
	if err := conn.WriteEnvelope(env); err != nil {
		c.handler.Notify(Notification{Kind: NoteError, Reason: "send failed", Err: err})
	}
}

func (c *Client) newBackOff() backoff.BackOff {
	if !c.cfg.Exponential {
		return backoff.NewConstantBackOff(c.cfg.RetryDelay)
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryDelay
	bo.MaxInterval = 10 * c.cfg.RetryDelay
	bo.MaxElapsedTime = 0
	return bo
}

// recordFailure bumps the consecutive-failure counter and reports
// whether the retry budget is now exhausted.
func (c *Client) recordFailure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return c.attempts >= c.cfg.MaxAttempts
}

func (c *Client) opened(conn Conn) {
	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.mu.Unlock()
	c.transition(StateOpen, "")
}

func (c *Client) closed(conn Conn, reason string) {
	conn.Close()
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	c.transition(StateClosed, reason)
}

// abandon is the terminal transition: buffered message state is cleared
// and the surrounding application must rely on the polling channel or an
// explicit new Run.
func (c *Client) abandon() {
	c.mu.Lock()
	c.lastMsg = nil
	c.mu.Unlock()
	c.logger.Warn("push transport abandoned",
		slog.Int("attempts", c.cfg.MaxAttempts), slog.String("url", c.cfg.URL))
	c.transition(StateAbandoned, "retry budget exhausted")
}

func (c *Client) transition(s State, reason string) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.handler.Notify(Notification{Kind: NoteState, State: s, Reason: reason})
}

// readLoop delivers inbound envelopes until the connection fails. The
// context watcher closes the connection so a cancelled client never
// leaks a handler that could fire after teardown.
func (c *Client) readLoop(ctx context.Context, conn Conn) string {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			return err.Error()
		}
		c.mu.Lock()
		saved := env
		c.lastMsg = &saved
		c.mu.Unlock()
		c.handler.Notify(Notification{Kind: NoteMessage, Envelope: env})
	}
}
