package core

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"gigchain/core/types"
)

const eventHistoryLimit = 2048

// EventUpdate is a committed event tagged with its position in the stream.
type EventUpdate struct {
	Sequence  uint64       `json:"sequence"`
	Cursor    string       `json:"cursor"`
	Module    string       `json:"module"`
	Operation string       `json:"operation"`
	Timestamp int64        `json:"timestamp"`
	Event     *types.Event `json:"event"`
}

func cloneEventUpdate(update EventUpdate) EventUpdate {
	cloned := update
	if update.Event != nil {
		attrs := make(map[string]string, len(update.Event.Attributes))
		for k, v := range update.Event.Attributes {
			attrs[k] = v
		}
		cloned.Event = &types.Event{Type: update.Event.Type, Attributes: attrs}
	}
	return cloned
}

// EventStream fans committed events out to subscribers and keeps a bounded
// history so reconnecting clients can resume from a cursor.
type EventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan EventUpdate
	history []EventUpdate
}

func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[uint64]chan EventUpdate)}
}

// Resume makes the next published update follow seq. It never moves the
// sequence backwards.
func (s *EventStream) Resume(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.seq {
		s.seq = seq
	}
}

// Publish appends update to the history and offers it to every subscriber.
// Slow subscribers miss updates rather than blocking the publisher.
func (s *EventStream) Publish(update EventUpdate) EventUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	update.Sequence = s.seq
	update.Cursor = strconv.FormatUint(update.Sequence, 10)
	s.history = append(s.history, cloneEventUpdate(update))
	if len(s.history) > eventHistoryLimit {
		excess := len(s.history) - eventHistoryLimit
		trimmed := make([]EventUpdate, eventHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- cloneEventUpdate(update):
		default:
		}
	}
	return update
}

// Subscribe registers a subscriber for updates after cursor. The returned
// backlog holds the retained history past the cursor; the cancel function
// closes the channel and is also invoked once ctx is done.
func (s *EventStream) Subscribe(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate) {
	updates := make(chan EventUpdate, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]EventUpdate, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventUpdate(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	done := make(chan struct{})
	cancel := func() {
		once.Do(func() {
			close(done)
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-done:
			}
		}()
	}

	return updates, cancel, backlog
}

// Subscribers reports the number of live subscriptions.
func (s *EventStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
