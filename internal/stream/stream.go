// Package stream implements the client side of event delivery: a
// reconnecting websocket push client, a cursor-based polling fallback,
// and one local notification surface shared by both so consumers treat
// the two transports uniformly.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stockpulse/stockpulse/internal/event"
)

// State is the push transport connection state.
type State int

const (
	// StateIdle means no connection attempt has been made yet.
	StateIdle State = iota
	// StateConnecting means a connection attempt is in flight.
	StateConnecting
	// StateOpen means the connection is established.
	StateOpen
	// StateClosed means the connection dropped; a retry decision follows.
	StateClosed
	// StateAbandoned is terminal: the retry budget is exhausted and no
	// further automatic attempts will be made.
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// NoteKind discriminates Notification variants.
type NoteKind int

const (
	// NoteState reports a transport state transition.
	NoteState NoteKind = iota
	// NoteMessage carries one inbound envelope.
	NoteMessage
	// NoteError reports a non-fatal transport error (failed poll, failed
	// send). The transport keeps running.
	NoteError
)

// Notification is the single local event surface produced by both
// transports. Transport failures arrive here as state transitions or
// errors, never as panics or returned errors.
type Notification struct {
	Kind     NoteKind
	State    State
	Reason   string
	Err      error
	Envelope event.Envelope
}

// Handler consumes notifications from a transport.
type Handler interface {
	Notify(Notification)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(Notification)

// Notify calls f.
func (f HandlerFunc) Notify(n Notification) { f(n) }

// Clock abstracts waiting so retry and poll schedules are testable with
// no real time involved.
type Clock interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in
	// the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Dedup wraps a Handler and drops event envelopes whose sequence was
// already delivered. A client running push and poll side by side can see
// the same event on both channels; dedup by sequence makes consumption
// idempotent. Non-event notifications pass through untouched.
type Dedup struct {
	next Handler

	mu   sync.Mutex
	last uint64
}

// NewDedup wraps next with sequence-based deduplication.
func NewDedup(next Handler) *Dedup {
	return &Dedup{next: next}
}

// Notify implements Handler.
func (d *Dedup) Notify(n Notification) {
	if n.Kind != NoteMessage {
		d.next.Notify(n)
		return
	}
	var probe struct {
		Sequence uint64 `json:"sequence"`
	}
	if err := json.Unmarshal(n.Envelope.Data, &probe); err != nil || probe.Sequence == 0 {
		// Not a sequenced event (snapshot, pong); always deliver.
		d.next.Notify(n)
		return
	}
	d.mu.Lock()
	dup := probe.Sequence <= d.last
	if !dup {
		d.last = probe.Sequence
	}
	d.mu.Unlock()
	if !dup {
		d.next.Notify(n)
	}
}

// LastSequence reports the highest event sequence delivered downstream.
func (d *Dedup) LastSequence() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
