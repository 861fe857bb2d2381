// Package sequence hands out monotonically increasing numbers per event
// partition so consumers can order and deduplicate product change events.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrInvalidPartition is returned for keys not of the form "<backend>:<productId>".
var ErrInvalidPartition = errors.New("invalid product partition key")

const nextSQL = `
INSERT INTO event_sequence (partition_key, last_sequence)
VALUES ($1, 1)
ON CONFLICT (partition_key)
DO UPDATE SET last_sequence = event_sequence.last_sequence + 1, updated_at = now()
RETURNING last_sequence`

type Store interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository keeps one counter row per product partition in event_sequence.
type Repository struct {
	store Store
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store}
}

// Next returns the next number for a product partition, starting at 1.
// Products with the same id in different backends are counted separately.
func (r *Repository) Next(ctx context.Context, partitionKey string) (int64, error) {
	backend, productID, ok := strings.Cut(partitionKey, ":")
	if !ok || productID == "" || (backend != "sql" && backend != "nosql") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPartition, partitionKey)
	}

	var seq int64
	if err := r.store.QueryRow(ctx, nextSQL, partitionKey).Scan(&seq); err != nil {
		return 0, fmt.Errorf("allocate %s event sequence for product %s: %w", backend, productID, err)
	}
	return seq, nil
}
