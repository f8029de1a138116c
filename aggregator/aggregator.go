package aggregator

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// Sentinel errors for failure cases
var (
	ErrCheckpointLoad      = errors.New("checkpoint load failed")
	ErrCheckpointSave      = errors.New("checkpoint save failed")
	ErrVersionLookupFailed = errors.New("version lookup failed")
	ErrEventFetchFailed    = errors.New("event fetch failed")
	ErrBalanceQueryFailed  = errors.New("balance query failed")
)

// Version describes one historical deployment of the bridge contract,
// as supplied by the release registry (oldest release first).
type Version struct {
	Release string
	Tag     string
	Commit  string
	Date    string
	Address string
}

// Withdrawal is one withdrawal event pulled from a deployed bridge version.
// It is ephemeral; only the deduplicated withdrawer set is ever persisted.
type Withdrawal struct {
	Release  string
	Tag      string
	Contract string
	Account  string
}

// Registry lists the historical bridge deployments to scan
// ---------------------------------------------------------
type Registry interface {
	Versions(ctx context.Context) ([]Version, error)
}

// EventSource fetches all withdrawal events emitted by one deployed version,
// from deployment to the current chain head, oldest first.
type EventSource interface {
	PastWithdrawals(ctx context.Context, v Version) ([]Withdrawal, error)
}

// BalanceReader resolves the escrowed SNX balance for one account via a
// read-only contract call.
type BalanceReader interface {
	EscrowedBalance(ctx context.Context, account string) (*big.Int, error)
}

// Store persists the checkpoint snapshot
// ---------------------------------------
type Store interface {
	// Load reads the persisted checkpoint, or returns a zero-valued one
	// when nothing has been persisted yet.
	Load(ctx context.Context) (*Checkpoint, error)
	// Save atomically replaces the persisted snapshot with the given record.
	// It is called once per recorded account, so it must be cheap to repeat.
	Save(ctx context.Context, cp *Checkpoint) error
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	Now() time.Time
}

// Event represents a run lifecycle event
// ---------------------------------------
type Event any

type RunStarted struct {
	StartedAt time.Time
	Recorded  int // accounts already present in the loaded checkpoint
}

type VersionScanned struct {
	Release string
	Tag     string
	Address string
	Events  int
}

type CollectDone struct {
	Versions int
	Events   int
}

type DedupDone struct {
	Events int
	Unique int
}

type BalanceSkipped struct {
	Account string
}

type BalanceRecorded struct {
	Account  string
	Balance  string
	Position int
	Total    int
}

type RunDone struct {
	TotalEscrowed string
	Withdrawers   uint64
	Duration      time.Duration
}

type RunError struct {
	Err error
}
