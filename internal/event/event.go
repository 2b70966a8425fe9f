// Package event holds the append-only domain event log and its wire types.
package event

import (
	"encoding/json"
	"time"
)

// Kind classifies a domain event. The values double as the wire-level
// envelope type so push and poll clients speak the same protocol.
type Kind string

const (
	// KindCreated is appended when a new product enters the catalogue.
	KindCreated Kind = "PRODUCT_CREATED"
	// KindQuantityChanged is appended when a product's stock level moves.
	KindQuantityChanged Kind = "PRODUCT_UPDATED"
	// KindLowStock is appended when a mutation leaves a product below its
	// reorder level. It always follows the KindQuantityChanged event that
	// caused it.
	KindLowStock Kind = "LOW_STOCK_ALERT"
	// KindOrderPlaced is appended when a new order is stored.
	KindOrderPlaced Kind = "ORDER_PLACED"
	// KindOrderStatusChanged is appended when an order changes status.
	KindOrderStatusChanged Kind = "ORDER_STATUS_CHANGED"
	// KindSupplierNotice is appended for supplier-related notices, usually
	// recorded through the activities endpoint by the reorder worker.
	KindSupplierNotice Kind = "SUPPLIER_NOTICE"
)

// Envelope types that are not derived from log events.
const (
	// TypeInitial carries the recent-event snapshot sent once per new
	// push subscription.
	TypeInitial = "INITIAL_ACTIVITIES"
	// TypePing is sent by clients to probe liveness.
	TypePing = "PING"
	// TypePong answers a TypePing.
	TypePong = "PONG"
)

// Event is one immutable entry of the log. Sequence numbers are assigned
// at append time, are strictly increasing and gap-free for the lifetime
// of the process.
type Event struct {
	Sequence    uint64    `json:"sequence"`
	Kind        Kind      `json:"kind"`
	SubjectID   int64     `json:"subjectId,omitempty"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Envelope is the framed wire message shared by the websocket and the
// polling channel. Data holds the kind-specific payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope frames a payload under the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: typ}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Data: data}, nil
}

// Wrap frames a log event for delivery.
func Wrap(ev Event) (Envelope, error) {
	return NewEnvelope(string(ev.Kind), ev)
}
