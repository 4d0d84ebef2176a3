package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event announces that a row in a table changed. It intentionally carries no
// row payload: subscribers are expected to re-fetch the affected list, which
// keeps out-of-order delivery harmless.
type Event struct {
	Table    string    `json:"table"`
	Action   string    `json:"action"`
	EntityID string    `json:"entity_id"`
	Origin   string    `json:"origin"`
	At       time.Time `json:"at"`
}

// Callback receives change events. Callbacks run on the publishing goroutine
// and must not block.
type Callback func(Event)

type subscription struct {
	table    string
	actions  map[string]struct{}
	callback Callback
}

// Bus fans change events out to in-process subscribers and mirrors them over
// Redis pub/sub so other instances can re-broadcast to their own subscribers.
// A nil Redis client degrades to purely in-process delivery.
type Bus struct {
	id      string
	client  *redis.Client
	channel string
	logger  *zap.Logger

	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
}

// NewBus constructs a change bus publishing on the given Redis channel.
func NewBus(client *redis.Client, channel string, logger *zap.Logger) *Bus {
	if channel == "" {
		channel = "board:changes"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		id:      uuid.NewString(),
		client:  client,
		channel: channel,
		logger:  logger,
		subs:    make(map[uint64]*subscription),
	}
}

// Start begins relaying events published by other instances. It returns
// immediately; relaying stops when ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	if b.client == nil {
		return
	}
	pubsub := b.client.Subscribe(ctx, b.channel)
	go func() {
		defer pubsub.Close() //nolint:errcheck
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("failed to decode change event", zap.Error(err))
					continue
				}
				if event.Origin == b.id {
					continue
				}
				b.dispatch(event)
			}
		}
	}()
}

// Publish delivers the event to local subscribers and mirrors it to Redis.
// Delivery is fire-and-forget: a Redis failure is logged, never returned.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	event.Origin = b.id

	b.dispatch(event)

	if b.client == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("failed to encode change event", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("failed to publish change event", zap.Error(err))
	}
}

// Subscribe registers a callback for changes on the given table. An empty
// action list matches every action. The returned function removes the
// subscription.
func (b *Bus) Subscribe(table string, actions []string, callback Callback) func() {
	actionSet := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		actionSet[a] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = &subscription{table: table, actions: actionSet, callback: callback}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) dispatch(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.table != "" && sub.table != event.Table {
			continue
		}
		if len(sub.actions) > 0 {
			if _, ok := sub.actions[event.Action]; !ok {
				continue
			}
		}
		sub.callback(event)
	}
}
