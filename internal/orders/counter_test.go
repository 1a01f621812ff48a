package orders

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagra-pos/sagra-pos/internal/shared"
)

type memCounterStore struct {
	mu      sync.Mutex
	current int64
}

func (s *memCounterStore) Increment(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current++
	return s.current, nil
}

func (s *memCounterStore) Set(ctx context.Context, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = value
	return nil
}

type memNumberChecker struct {
	mu    sync.Mutex
	inUse map[int64]bool
}

func (c *memNumberChecker) OrderNumberExists(ctx context.Context, number int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inUse[number], nil
}

type memAudit struct {
	mu      sync.Mutex
	records []shared.AuditLog
}

func (a *memAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, log)
	return nil
}

func newTestCounter(store CounterStore, checker NumberChecker, audit AuditPort) *Counter {
	return NewCounter(store, checker, audit, slog.New(slog.DiscardHandler))
}

func TestCounterAllocatesSequentially(t *testing.T) {
	counter := newTestCounter(&memCounterStore{}, &memNumberChecker{inUse: map[int64]bool{}}, &memAudit{})

	for want := int64(1); want <= 5; want++ {
		got, err := counter.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCounterRetriesOnCollision(t *testing.T) {
	// Number 1 already belongs to an order, as after an import that did
	// not rewind the counter.
	checker := &memNumberChecker{inUse: map[int64]bool{1: true}}
	counter := newTestCounter(&memCounterStore{}, checker, &memAudit{})

	got, err := counter.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestCounterFallsBackAfterTwoCollisions(t *testing.T) {
	checker := &memNumberChecker{inUse: map[int64]bool{1: true, 2: true}}
	audit := &memAudit{}
	counter := newTestCounter(&memCounterStore{}, checker, audit)

	got, err := counter.Next(context.Background())
	require.NoError(t, err)
	// Timestamp-derived fallback is far outside the dense sequence.
	assert.Greater(t, got, int64(1_000_000))

	require.Len(t, audit.records, 1)
	assert.Equal(t, "order_number_fallback", audit.records[0].Action)
}

func TestCounterUniqueUnderConcurrency(t *testing.T) {
	counter := newTestCounter(&memCounterStore{}, &memNumberChecker{inUse: map[int64]bool{}}, &memAudit{})

	const goroutines = 50
	results := make(chan int64, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := counter.Next(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for n := range results {
		require.False(t, seen[n], "number %d allocated twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, goroutines)
}

func TestCounterReset(t *testing.T) {
	store := &memCounterStore{}
	counter := newTestCounter(store, &memNumberChecker{inUse: map[int64]bool{}}, &memAudit{})

	_, err := counter.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, counter.Reset(context.Background(), 42))

	got, err := counter.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(43), got)
}
