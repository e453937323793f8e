package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/events"
)

type captureNotifier struct {
	events []events.Event
}

func (c *captureNotifier) Notify(_ context.Context, event events.Event) error {
	c.events = append(c.events, event)
	return nil
}

func TestEmitRecordsAndNotifies(t *testing.T) {
	store := &events.MemoryStore{}
	notifier := &captureNotifier{}
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus := events.Bus{
		Store:     store,
		Notifiers: []events.Notifier{notifier},
		Now:       func() time.Time { return fixed },
	}

	event, err := bus.Emit(context.Background(), events.TopicOrderPlaced, "order-1", map[string]any{"total": "709.53"})
	require.NoError(t, err)
	require.Equal(t, fixed, event.OccurredAt)
	require.JSONEq(t, `{"total":"709.53"}`, string(event.Payload))

	stored := store.List(events.TopicOrderPlaced)
	require.Len(t, stored, 1)
	require.Equal(t, event.ID, stored[0].ID)
	require.Len(t, notifier.events, 1)
	require.Empty(t, store.List(events.TopicCartCleared))
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{Store: &events.MemoryStore{}}
	_, err := bus.Emit(context.Background(), " ", "x", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicCartCleared, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicCartCleared, "cart", json.RawMessage("{bad"))
	require.Error(t, err)

	var nilBus *events.Bus
	_, err = nilBus.Emit(context.Background(), events.TopicCartCleared, "cart", nil)
	require.Error(t, err)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	boom := errors.New("boom")
	second := &captureNotifier{}
	bus := events.Bus{
		Store: &events.MemoryStore{},
		Notifiers: []events.Notifier{
			events.FuncNotifier(func(context.Context, events.Event) error { return boom }),
			second,
		},
	}
	_, err := bus.Emit(context.Background(), events.TopicCartCleared, "cart-1", nil)
	require.ErrorIs(t, err, boom)
	require.Len(t, second.events, 1)
}

func TestMemoryStoreLimit(t *testing.T) {
	store := &events.MemoryStore{Limit: 2}
	bus := events.Bus{Store: store}
	for _, id := range []string{"a", "b", "c"} {
		_, err := bus.Emit(context.Background(), events.TopicCartCleared, id, nil)
		require.NoError(t, err)
	}
	all := store.List("")
	require.Len(t, all, 2)
	require.Equal(t, "b", all[0].AggregateID)
}

func TestStreamStoreAppends(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := events.StreamStore{R: client, Prefix: "test:"}
	bus := events.Bus{Store: store}
	_, err := bus.Emit(context.Background(), events.TopicOrderPlaced, "order-9", map[string]int{"items": 2})
	require.NoError(t, err)

	entries, err := client.XRange(context.Background(), store.StreamKey(events.TopicOrderPlaced), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var decoded events.Event
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["event"].(string)), &decoded))
	require.Equal(t, "order-9", decoded.AggregateID)
}

func TestLogNotifierWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	bus := events.Bus{
		Store:     &events.MemoryStore{},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: zerolog.New(&buf)}},
	}
	_, err := bus.Emit(context.Background(), events.TopicOrderPlaced, "order-2", map[string]string{"cart": "c1"})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"topic":"order.placed"`)
	require.Contains(t, buf.String(), `"payload":{"cart":"c1"}`)
}
