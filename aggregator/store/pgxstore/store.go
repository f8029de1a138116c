// Package pgxstore persists the checkpoint snapshot as a single jsonb row
// in PostgreSQL. Useful when the scan runs on shared infrastructure where a
// local file would not survive the host; the contract is identical to the
// file store: one live record, whole-snapshot overwrite per save.
package pgxstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/escrowscan/aggregator"
)

// Sentinel errors for store operations
var (
	ErrCheckpointCorrupt = errors.New("checkpoint row corrupt")
	ErrLoadFailed        = errors.New("checkpoint load query failed")
	ErrSaveFailed        = errors.New("checkpoint upsert failed")
)

// Store implements aggregator.Store on a singleton PostgreSQL row
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// Load reads the persisted snapshot. An absent row yields a zero-valued
// checkpoint; a row that fails to parse is fatal.
func (s *Store) Load(ctx context.Context) (*aggregator.Checkpoint, error) {
	var snapshot []byte
	err := s.pool.QueryRow(ctx, "SELECT snapshot FROM escrow_checkpoint WHERE single_row").Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return aggregator.NewCheckpoint(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	cp := aggregator.NewCheckpoint()
	if err := json.Unmarshal(snapshot, cp); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpointCorrupt, err)
	}
	return cp, nil
}

// Save replaces the singleton row with the full snapshot (proper upsert)
func (s *Store) Save(ctx context.Context, cp *aggregator.Checkpoint) error {
	snapshot, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO escrow_checkpoint (single_row, snapshot) VALUES (TRUE, $1)
		ON CONFLICT (single_row) DO UPDATE SET snapshot = EXCLUDED.snapshot
	`, snapshot)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return nil
}
