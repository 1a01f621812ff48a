package kitchen

import (
	"context"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSelectionStore(t *testing.T) *SelectionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSelectionStore(client, nil, slog.New(slog.DiscardHandler))
}

func TestToggleMarksAndUnmarks(t *testing.T) {
	store := newTestSelectionStore(t)
	ctx := context.Background()

	selected, err := store.Toggle(ctx, "order-1", "Pasta al ragù")
	require.NoError(t, err)
	assert.True(t, selected)

	dishes, err := store.List(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pasta al ragù"}, dishes)

	selected, err = store.Toggle(ctx, "order-1", "Pasta al ragù")
	require.NoError(t, err)
	assert.False(t, selected)

	dishes, err = store.List(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, dishes)
}

func TestSelectionsAreScopedPerOrder(t *testing.T) {
	store := newTestSelectionStore(t)
	ctx := context.Background()

	_, err := store.Toggle(ctx, "order-1", "Pasta al ragù")
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "order-2", "Grigliata mista")
	require.NoError(t, err)

	dishes, err := store.List(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Pasta al ragù"}, dishes)
}

func TestClearDropsAllMarks(t *testing.T) {
	store := newTestSelectionStore(t)
	ctx := context.Background()

	_, err := store.Toggle(ctx, "order-1", "Pasta al ragù")
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "order-1", "Grigliata mista")
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, "order-1"))

	dishes, err := store.List(ctx, "order-1")
	require.NoError(t, err)
	assert.Empty(t, dishes)
}

func TestPruneKeepsActiveOrders(t *testing.T) {
	store := newTestSelectionStore(t)
	ctx := context.Background()

	_, err := store.Toggle(ctx, "active", "Pasta al ragù")
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "stale-1", "Grigliata mista")
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "stale-2", "Patatine fritte")
	require.NoError(t, err)

	pruned, err := store.Prune(ctx, []string{"active"})
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)

	dishes, err := store.List(ctx, "active")
	require.NoError(t, err)
	assert.Len(t, dishes, 1)

	dishes, err = store.List(ctx, "stale-1")
	require.NoError(t, err)
	assert.Empty(t, dishes)
}

func TestPruneWithNoActiveOrdersRemovesEverything(t *testing.T) {
	store := newTestSelectionStore(t)
	ctx := context.Background()

	_, err := store.Toggle(ctx, "order-1", "Pasta al ragù")
	require.NoError(t, err)
	_, err = store.Toggle(ctx, "order-2", "Grigliata mista")
	require.NoError(t, err)

	pruned, err := store.Prune(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)
}
