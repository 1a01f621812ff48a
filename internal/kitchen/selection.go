// Package kitchen serves the preparation queue and the shared per-order
// selection marks kitchen staff use to tick off dishes while cooking. The
// marks are ephemeral coordination state held in Redis, never part of the
// order record, and every kitchen terminal sees everyone's marks.
package kitchen

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
)

const selectionKeyPrefix = "kitchen:selection:"

// selectionTTL bounds how long an abandoned selection set can linger if the
// opportunistic prune never runs.
const selectionTTL = 24 * time.Hour

// SelectionStore keeps the per-order selection sets.
type SelectionStore struct {
	client *redis.Client
	events *pubsub.Broker
	logger *slog.Logger
}

// NewSelectionStore constructs a SelectionStore.
func NewSelectionStore(client *redis.Client, events *pubsub.Broker, logger *slog.Logger) *SelectionStore {
	return &SelectionStore{client: client, events: events, logger: logger}
}

func selectionKey(orderID string) string {
	return selectionKeyPrefix + orderID
}

// Toggle flips the mark for one dish of one order and returns the new state.
func (s *SelectionStore) Toggle(ctx context.Context, orderID, dish string) (bool, error) {
	key := selectionKey(orderID)
	selected, err := s.client.SIsMember(ctx, key, dish).Result()
	if err != nil {
		return false, fmt.Errorf("kitchen: read selection: %w", err)
	}
	if selected {
		if err := s.client.SRem(ctx, key, dish).Err(); err != nil {
			return false, fmt.Errorf("kitchen: unmark dish: %w", err)
		}
	} else {
		pipe := s.client.TxPipeline()
		pipe.SAdd(ctx, key, dish)
		pipe.Expire(ctx, key, selectionTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, fmt.Errorf("kitchen: mark dish: %w", err)
		}
	}
	s.publish(ctx, orderID)
	return !selected, nil
}

// List returns the marked dishes for one order.
func (s *SelectionStore) List(ctx context.Context, orderID string) ([]string, error) {
	dishes, err := s.client.SMembers(ctx, selectionKey(orderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("kitchen: list selection: %w", err)
	}
	return dishes, nil
}

// Clear drops every mark for one order. Called when the order leaves the
// kitchen queue.
func (s *SelectionStore) Clear(ctx context.Context, orderID string) error {
	if err := s.client.Del(ctx, selectionKey(orderID)).Err(); err != nil {
		return fmt.Errorf("kitchen: clear selection: %w", err)
	}
	s.publish(ctx, orderID)
	return nil
}

// Prune deletes selection sets whose order is no longer in preparation and
// returns how many were removed. It runs opportunistically after queue
// loads and on a schedule; a missed run costs memory, not correctness.
func (s *SelectionStore) Prune(ctx context.Context, activeOrderIDs []string) (int, error) {
	active := make(map[string]bool, len(activeOrderIDs))
	for _, id := range activeOrderIDs {
		active[id] = true
	}

	var pruned int
	iter := s.client.Scan(ctx, 0, selectionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		orderID := strings.TrimPrefix(key, selectionKeyPrefix)
		if active[orderID] {
			continue
		}
		if err := s.client.Del(ctx, key).Err(); err != nil {
			s.logger.Warn("prune selection", slog.String("order_id", orderID), slog.Any("error", err))
			continue
		}
		pruned++
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("kitchen: scan selections: %w", err)
	}
	return pruned, nil
}

func (s *SelectionStore) publish(ctx context.Context, orderID string) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, pubsub.Event{
		Collection: pubsub.CollectionSelections,
		Op:         pubsub.OpUpdated,
		ID:         orderID,
		At:         time.Now(),
	})
	if err != nil {
		s.logger.Warn("publish selection event", slog.Any("error", err))
	}
}
