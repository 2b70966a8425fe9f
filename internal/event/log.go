package event

import (
	"sync"
	"time"
)

// Sink receives every appended event, synchronously and in append order.
// The fanout hub implements it. Publish must not block; slow consumers
// are the sink's problem, never the append path's.
type Sink interface {
	Publish(Event)
}

// Log is the in-memory append-only event log. Events are kept in a dense
// slice so the sequence number of events[i] is always i+1; ReadSince is a
// slice copy, not a scan.
type Log struct {
	mu     sync.RWMutex
	events []Event
	sink   Sink
	now    func() time.Time
}

// NewLog constructs an empty log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// SetSink installs the delivery sink. Must be called before the first
// append; events appended while no sink is set are stored but not fanned
// out.
func (l *Log) SetSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = s
}

// Append stores a new event, assigns the next sequence number and
// notifies the sink. The sink is invoked under the log lock so delivery
// order always matches append order.
func (l *Log) Append(kind Kind, subjectID int64, description string) Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev := Event{
		Sequence:    uint64(len(l.events)) + 1,
		Kind:        kind,
		SubjectID:   subjectID,
		Description: description,
		OccurredAt:  l.now().UTC(),
	}
	l.events = append(l.events, ev)
	if l.sink != nil {
		l.sink.Publish(ev)
	}
	return ev
}

// ReadSince returns all events with sequence > cursor in ascending order.
// An empty result is a normal outcome, not an error.
func (l *Log) ReadSince(cursor uint64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if cursor >= uint64(len(l.events)) {
		return nil
	}
	tail := l.events[cursor:]
	out := make([]Event, len(tail))
	copy(out, tail)
	return out
}

// ReadLatest returns the most recent n events, newest first.
func (l *Log) ReadLatest(n int) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	if n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, 0, n)
	for i := len(l.events) - 1; i >= len(l.events)-n; i-- {
		out = append(out, l.events[i])
	}
	return out
}

// Len reports the number of appended events, which equals the highest
// assigned sequence number.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
