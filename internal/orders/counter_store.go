package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagra-pos/sagra-pos/internal/platform/db"
)

// PGCounterStore keeps the order-number sequence in a single-row table.
type PGCounterStore struct {
	pool *pgxpool.Pool
}

// NewPGCounterStore constructs the store.
func NewPGCounterStore(pool *pgxpool.Pool) *PGCounterStore {
	return &PGCounterStore{pool: pool}
}

// Increment advances the persisted counter inside one transaction; the row
// is locked for the duration so concurrent confirmations serialize here and
// never read the same value.
func (s *PGCounterStore) Increment(ctx context.Context) (int64, error) {
	var next int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var current int64
		err := tx.QueryRow(ctx, `SELECT current_number FROM order_counter WHERE id = 1 FOR UPDATE`).Scan(&current)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			current = 0
			if _, err := tx.Exec(ctx, `INSERT INTO order_counter (id, current_number) VALUES (1, 0)`); err != nil {
				return err
			}
		}
		next = current + 1
		_, err = tx.Exec(ctx, `UPDATE order_counter SET current_number = $1 WHERE id = 1`, next)
		return err
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Set overwrites the persisted counter value.
func (s *PGCounterStore) Set(ctx context.Context, value int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO order_counter (id, current_number) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET current_number = EXCLUDED.current_number
	`, value)
	return err
}
