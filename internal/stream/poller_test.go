package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse/internal/event"
)

// memoryFetcher serves a fixed in-order event slice the way the poll
// endpoint does: everything with a sequence past the cursor.
type memoryFetcher struct {
	mu     sync.Mutex
	events []event.Event
	err    error
	calls  int
}

func (f *memoryFetcher) FetchSince(ctx context.Context, cursor uint64) ([]event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []event.Event
	for _, ev := range f.events {
		if ev.Sequence > cursor {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *memoryFetcher) append(evs ...event.Event) {
	f.mu.Lock()
	f.events = append(f.events, evs...)
	f.mu.Unlock()
}

type fakeSender struct {
	mu   sync.Mutex
	sent []event.Envelope
	err  error
}

func (s *fakeSender) Send(ctx context.Context, env event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, env)
	return nil
}

func seqEvents(seqs ...uint64) []event.Event {
	out := make([]event.Event, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, event.Event{
			Sequence:    s,
			Kind:        event.KindQuantityChanged,
			SubjectID:   1,
			Description: "Widget inventory decreased by 1 units",
			OccurredAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		})
	}
	return out
}

func TestPollOnceAdvancesCursorAndDelivers(t *testing.T) {
	fetcher := &memoryFetcher{}
	fetcher.append(seqEvents(1, 2, 3)...)
	handler := &recordingHandler{}
	p := NewPoller(testLogger(), fetcher, nil, handler, PollerConfig{Clock: &instantClock{}})

	got := p.PollOnce(context.Background())

	require.Len(t, got, 3)
	require.Equal(t, uint64(3), p.Cursor())
	msgs := handler.messages()
	require.Len(t, msgs, 3)
	require.Equal(t, string(event.KindQuantityChanged), msgs[0].Type)
}

func TestPollOnceSkipsAlreadySeenSequences(t *testing.T) {
	fetcher := &memoryFetcher{}
	fetcher.append(seqEvents(1, 2, 3)...)
	handler := &recordingHandler{}
	p := NewPoller(testLogger(), fetcher, nil, handler, PollerConfig{Cursor: 2, Clock: &instantClock{}})

	got := p.PollOnce(context.Background())

	require.Len(t, got, 1)
	require.Equal(t, uint64(3), got[0].Sequence)
	require.Equal(t, uint64(3), p.Cursor())
}

func TestEmptyPollLeavesCursorUnchanged(t *testing.T) {
	fetcher := &memoryFetcher{}
	fetcher.append(seqEvents(1, 2)...)
	handler := &recordingHandler{}
	p := NewPoller(testLogger(), fetcher, nil, handler, PollerConfig{Clock: &instantClock{}})

	p.PollOnce(context.Background())
	require.Equal(t, uint64(2), p.Cursor())

	got := p.PollOnce(context.Background())
	require.Empty(t, got)
	require.Equal(t, uint64(2), p.Cursor())
	require.Len(t, handler.messages(), 2)
}

func TestPollerCatchesUpAfterGap(t *testing.T) {
	// Events appended while the poller was not looking are all picked up
	// on the next cycle, in order.
	fetcher := &memoryFetcher{}
	fetcher.append(seqEvents(1)...)
	handler := &recordingHandler{}
	p := NewPoller(testLogger(), fetcher, nil, handler, PollerConfig{Clock: &instantClock{}})

	p.PollOnce(context.Background())
	fetcher.append(seqEvents(2, 3, 4)...)
	got := p.PollOnce(context.Background())

	require.Len(t, got, 3)
	require.Equal(t, uint64(4), p.Cursor())
	require.Len(t, handler.messages(), 4)
}

func TestPollFailureReportsAndKeepsCursor(t *testing.T) {
	fetcher := &memoryFetcher{err: errors.New("connect: connection refused")}
	handler := &recordingHandler{}
	p := NewPoller(testLogger(), fetcher, nil, handler, PollerConfig{Cursor: 7, Clock: &instantClock{}})

	got := p.PollOnce(context.Background())

	require.Nil(t, got)
	require.Equal(t, uint64(7), p.Cursor())
	require.Len(t, handler.notes, 1)
	require.Equal(t, NoteError, handler.notes[0].Kind)

	// Recovery on the next cycle resumes from the same cursor.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.mu.Unlock()
	fetcher.append(seqEvents(8)...)
	got = p.PollOnce(context.Background())
	require.Len(t, got, 1)
	require.Equal(t, uint64(8), p.Cursor())
}

func TestRunStopsOnCancellation(t *testing.T) {
	fetcher := &memoryFetcher{}
	handler := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPoller(testLogger(), fetcher, nil, handler, PollerConfig{Clock: &instantClock{}})

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestSendDelegatesToSender(t *testing.T) {
	sender := &fakeSender{}
	handler := &recordingHandler{}
	p := NewPoller(testLogger(), &memoryFetcher{}, sender, handler, PollerConfig{Clock: &instantClock{}})

	p.Send(context.Background(), event.Envelope{Type: event.TypePing})

	require.Len(t, sender.sent, 1)
	require.Empty(t, handler.notes)
}

func TestSendFailureReportsError(t *testing.T) {
	sender := &fakeSender{err: errors.New("503")}
	handler := &recordingHandler{}
	p := NewPoller(testLogger(), &memoryFetcher{}, sender, handler, PollerConfig{Clock: &instantClock{}})

	p.Send(context.Background(), event.Envelope{Type: event.TypePing})

	require.Len(t, handler.notes, 1)
	require.Equal(t, NoteError, handler.notes[0].Kind)
}

func TestDedupMakesPushAndPollIdempotent(t *testing.T) {
	// The same events arriving on both transports reach the consumer
	// exactly once.
	handler := &recordingHandler{}
	dedup := NewDedup(handler)

	fetcher := &memoryFetcher{}
	fetcher.append(seqEvents(1, 2)...)
	p := NewPoller(testLogger(), fetcher, nil, dedup, PollerConfig{Clock: &instantClock{}})
	p.PollOnce(context.Background())

	// Push replays the same two sequences.
	for _, ev := range seqEvents(1, 2) {
		env, err := event.Wrap(ev)
		require.NoError(t, err)
		dedup.Notify(Notification{Kind: NoteMessage, Envelope: env})
	}

	require.Len(t, handler.messages(), 2)
	require.Equal(t, uint64(2), dedup.LastSequence())
}
