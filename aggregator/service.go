package aggregator

import (
	"context"
	"fmt"

	"github.com/screwyprof/escrowscan/pkg/clock"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// Service runs the aggregation in three sequential phases: collect
// withdrawal events across all bridge versions, deduplicate withdrawers,
// then accumulate escrowed balances one account at a time.
//
// Collection and deduplication re-run in full on every invocation; only the
// per-account balance phase is checkpointed. Re-scanning event logs is cheap
// next to the rate-limited balance queries, so the checkpoint carries the
// expensive work and nothing else.
type Service struct {
	registry Registry
	source   EventSource
	balances BalanceReader
	store    Store
	clock    Clock
	events   chan Event
}

// NewService constructs a Service with required dependencies and options
// ---------------------------------------------------------------------
func NewService(registry Registry, source EventSource, balances BalanceReader, store Store, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		source:   source,
		balances: balances,
		store:    store,
		clock:    clock.SystemClock{},
		events:   make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches one aggregation run and returns the events channel and
// done channel. The run stops at the first failure or when every withdrawer
// has a recorded balance; either way the events channel is closed and done
// is signalled. Cancelling the context abandons the run between balance
// queries; the last persisted snapshot stays valid for the next invocation.
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

// run orchestrates the three phases; any error aborts the whole run
// -----------------------------------------------------------------
func (s *Service) run(ctx context.Context) {
	start := s.clock.Now()

	cp, err := s.store.Load(ctx)
	if err != nil {
		s.events <- RunError{Err: fmt.Errorf("%w: %w", ErrCheckpointLoad, err)}
		return
	}

	s.events <- RunStarted{StartedAt: start, Recorded: cp.Recorded()}

	withdrawals, err := s.collect(ctx)
	if err != nil {
		s.events <- RunError{Err: err}
		return
	}

	unique := UniqueParticipants(withdrawals)
	cp.SetNumWithdrawers(uint64(len(unique)))
	if err := s.store.Save(ctx, cp); err != nil {
		s.events <- RunError{Err: fmt.Errorf("%w: %w", ErrCheckpointSave, err)}
		return
	}
	s.events <- DedupDone{Events: len(withdrawals), Unique: len(unique)}

	if err := s.accumulate(ctx, cp, unique); err != nil {
		s.events <- RunError{Err: err}
		return
	}

	s.events <- RunDone{
		TotalEscrowed: cp.Total().String(),
		Withdrawers:   cp.NumWithdrawers(),
		Duration:      s.clock.Now().Sub(start),
	}
}

// collect gathers withdrawal events across every bridge version, oldest
// release first. A fetch failure for any version is fatal: aborting beats
// silently under-counting withdrawers.
func (s *Service) collect(ctx context.Context) ([]Withdrawal, error) {
	versions, err := s.registry.Versions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVersionLookupFailed, err)
	}

	var all []Withdrawal
	for _, v := range versions {
		batch, err := s.source.PastWithdrawals(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s (%s): %w", ErrEventFetchFailed, v.Release, v.Address, err)
		}
		s.events <- VersionScanned{
			Release: v.Release,
			Tag:     v.Tag,
			Address: v.Address,
			Events:  len(batch),
		}
		all = append(all, batch...)
	}

	s.events <- CollectDone{Versions: len(versions), Events: len(all)}
	return all, nil
}

// accumulate resolves the escrowed balance for each withdrawer not yet in
// the checkpoint, persisting the full snapshot after every account. An
// interruption therefore loses at most the single in-flight query.
func (s *Service) accumulate(ctx context.Context, cp *Checkpoint, accounts []string) error {
	total := len(accounts)
	for i, account := range accounts {
		// respect cancellation between queries
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if cp.Has(account) {
			s.events <- BalanceSkipped{Account: account}
			continue
		}

		balance, err := s.balances.EscrowedBalance(ctx, account)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBalanceQueryFailed, account, err)
		}

		if err := cp.Record(account, balance); err != nil {
			return err
		}
		if err := s.store.Save(ctx, cp); err != nil {
			return fmt.Errorf("%w: %w", ErrCheckpointSave, err)
		}

		s.events <- BalanceRecorded{
			Account:  account,
			Balance:  balance.String(),
			Position: i + 1,
			Total:    total,
		}
	}
	return nil
}
