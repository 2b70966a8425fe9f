// Package hub fans appended events out to live push subscribers.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/stockpulse/stockpulse/internal/event"
	"github.com/stockpulse/stockpulse/internal/observability"
)

const (
	defaultSendBuffer   = 32
	defaultSnapshotSize = 5
)

// Subscription is one live push connection. Delivery happens over a
// buffered channel; a subscriber that stops draining it is dropped by
// the hub on the next publish.
type Subscription struct {
	id   string
	ch   chan event.Envelope
	once sync.Once
}

// ID returns the connection identifier.
func (s *Subscription) ID() string { return s.id }

// C is the receive side of the subscription.
func (s *Subscription) C() <-chan event.Envelope { return s.ch }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Config tunes hub behavior.
type Config struct {
	// SnapshotSize is how many recent events a new subscriber receives
	// as its INITIAL_ACTIVITIES message.
	SnapshotSize int
	// SendBuffer is the per-subscriber channel capacity.
	SendBuffer int
}

// Hub keeps the set of live subscribers and delivers every published
// event to each of them in publish order. Push delivery is best-effort:
// durability across disconnects belongs to the polling channel.
type Hub struct {
	logger  *slog.Logger
	log     *event.Log
	metrics *observability.Metrics
	cfg     Config

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// New constructs a Hub reading snapshots from log.
func New(logger *slog.Logger, log *event.Log, metrics *observability.Metrics, cfg Config) *Hub {
	if cfg.SnapshotSize <= 0 {
		cfg.SnapshotSize = defaultSnapshotSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	return &Hub{
		logger:  logger,
		log:     log,
		metrics: metrics,
		cfg:     cfg,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new live connection. The snapshot envelope is
// queued ahead of any event published after registration, so the
// subscriber always sees recent context first.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id: uuid.NewString(),
		ch: make(chan event.Envelope, h.cfg.SendBuffer),
	}
	snapshot, err := event.NewEnvelope(event.TypeInitial, h.log.ReadLatest(h.cfg.SnapshotSize))
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	if err == nil {
		sub.ch <- snapshot
	}
	h.mu.Unlock()
	if err != nil {
		h.logger.Error("encode snapshot", slog.Any("error", err))
	}
	h.metrics.SubscriberConnected()
	h.logger.Info("subscriber connected", slog.String("subscription", sub.id))
	return sub
}

// Unsubscribe removes a connection. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	sub.close()
	h.metrics.SubscriberDisconnected()
	h.logger.Info("subscriber disconnected", slog.String("subscription", sub.id))
}

// Publish delivers one event to every registered subscription. Called by
// the event log once per append, in append order. A subscriber whose
// buffer is full is removed; the rest still receive the event, and the
// append path is never blocked.
func (h *Hub) Publish(ev event.Event) {
	env, err := event.Wrap(ev)
	if err != nil {
		h.logger.Error("encode event", slog.Any("error", err), slog.Uint64("sequence", ev.Sequence))
		return
	}
	h.metrics.EventPublished(string(ev.Kind))

	var dropped []*Subscription
	h.mu.RLock()
	for sub := range h.subs {
		select {
		case sub.ch <- env:
		default:
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range dropped {
		h.logger.Warn("dropping stalled subscriber",
			slog.String("subscription", sub.id),
			slog.Uint64("sequence", ev.Sequence))
		h.metrics.DeliveryDropped()
		h.Unsubscribe(sub)
	}
}

// Reply queues an out-of-band envelope (e.g. PONG) for one subscriber.
// Best-effort like any other delivery.
func (h *Hub) Reply(sub *Subscription, env event.Envelope) {
	h.mu.RLock()
	_, ok := h.subs[sub]
	if ok {
		select {
		case sub.ch <- env:
		default:
		}
	}
	h.mu.RUnlock()
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
