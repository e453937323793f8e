package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MemoryStore keeps the most recent events in process.
type MemoryStore struct {
	// Limit caps the retained history; zero means 1000.
	Limit int

	mu     sync.RWMutex
	events []Event
}

// Append implements EventStore.
func (m *MemoryStore) Append(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := m.Limit
	if limit <= 0 {
		limit = 1000
	}
	m.events = append(m.events, event)
	if over := len(m.events) - limit; over > 0 {
		m.events = append([]Event(nil), m.events[over:]...)
	}
	return nil
}

// List returns retained events for topic in emission order. An empty topic
// returns everything.
func (m *MemoryStore) List(topic string) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, 0, len(m.events))
	for _, ev := range m.events {
		if topic == "" || ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

// StreamStore appends events to a Redis stream per topic, trimmed to roughly MaxLen entries.
type StreamStore struct {
	R      redis.Cmdable
	Prefix string
	MaxLen int64
}

// StreamKey returns the stream holding events of topic.
func (s StreamStore) StreamKey(topic string) string {
	return s.Prefix + "events:" + topic
}

// Append implements EventStore.
func (s StreamStore) Append(ctx context.Context, event Event) error {
	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return s.R.XAdd(ctx, &redis.XAddArgs{
		Stream: s.StreamKey(event.Topic),
		MaxLen: maxLen,
		Approx: true,
		Values: map[string]any{"id": event.ID.String(), "event": encoded},
	}).Err()
}

// LogNotifier writes every event to the structured log.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, event Event) error {
	n.Logger.Info().
		Str("event_id", event.ID.String()).
		Str("topic", event.Topic).
		Str("aggregate_id", event.AggregateID).
		RawJSON("payload", event.Payload).
		Msg("domain_event")
	return nil
}

// FuncNotifier adapts a function to Notifier.
type FuncNotifier func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f FuncNotifier) Notify(ctx context.Context, event Event) error {
	if f == nil {
		return fmt.Errorf("events: nil notifier func")
	}
	return f(ctx, event)
}
