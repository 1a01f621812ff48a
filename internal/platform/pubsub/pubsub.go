// Package pubsub implements the change feed shared by all terminals. The
// server publishes a notification after every catalog or order write and
// every subscribed terminal receives it without polling. Consumers are
// expected to read a snapshot first and then apply deltas from the feed.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Collections carried on the feed.
const (
	CollectionCatalog    = "catalog"
	CollectionOrders     = "orders"
	CollectionSelections = "selections"
)

// Event is a single change notification.
type Event struct {
	Collection string          `json:"collection"`
	Op         string          `json:"op"`
	ID         string          `json:"id"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// Broker publishes and subscribes change events over Redis pub/sub.
type Broker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewBroker constructs a Broker.
func NewBroker(client *redis.Client, logger *slog.Logger) *Broker {
	return &Broker{client: client, logger: logger}
}

func channelFor(collection string) string {
	return "feed:" + collection
}

// Publish emits an event on the collection's channel. Failures are returned
// to the caller; writes themselves are never rolled back over a missed
// notification.
func (b *Broker) Publish(ctx context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pubsub: marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(event.Collection), data).Err(); err != nil {
		return fmt.Errorf("pubsub: publish %s: %w", event.Collection, err)
	}
	return nil
}

// Subscribe returns a channel delivering events for the given collections.
// The channel is closed when ctx is cancelled; the underlying redis
// subscription is released at the same time.
func (b *Broker) Subscribe(ctx context.Context, collections ...string) (<-chan Event, error) {
	if len(collections) == 0 {
		return nil, fmt.Errorf("pubsub: at least one collection required")
	}
	channels := make([]string, 0, len(collections))
	for _, c := range collections {
		channels = append(channels, channelFor(c))
	}

	sub := b.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("pubsub: subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil && b.logger != nil {
				b.logger.Warn("pubsub close", slog.Any("error", err))
			}
		}()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					if b.logger != nil {
						b.logger.Warn("pubsub decode", slog.Any("error", err))
					}
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
