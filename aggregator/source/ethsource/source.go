// Package ethsource adapts the Synthetix release registry and an Ethereum
// RPC backend to the aggregator's collaborator interfaces: version lookup,
// historical withdrawal-event fetch, and escrowed-balance queries.
package ethsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/screwyprof/escrowscan/aggregator"
	"github.com/screwyprof/escrowscan/pkg/ethbridge"
	"github.com/screwyprof/escrowscan/pkg/snxdata"
)

// Contract and event names as published in the Synthetix release registry
const (
	BridgeContract       = "SynthetixBridgeToOptimism"
	WithdrawalEvent      = "WithdrawalCompleted"
	WithdrawalAccountArg = "account"
	EscrowContract       = "RewardEscrowV2"
	EscrowBalanceMethod  = "balanceOf"
)

// Sentinel errors for source operations
var (
	ErrNoDeployments  = errors.New("no deployments found")
	ErrInvalidAccount = errors.New("invalid account address")
)

// Source implements aggregator.Registry, aggregator.EventSource and
// aggregator.BalanceReader against one network.
type Source struct {
	registry *snxdata.Client
	backend  ethbridge.Backend
	network  string

	// resolved lazily, then reused for the rest of the run
	bridgeABI json.RawMessage
	escrow    *ethbridge.Contract
}

// New creates a Source bound to a release registry, an RPC backend and a
// network name.
func New(registry *snxdata.Client, backend ethbridge.Backend, network string) *Source {
	return &Source{
		registry: registry,
		backend:  backend,
		network:  network,
	}
}

// Versions lists the historical bridge deployments, oldest release first.
func (s *Source) Versions(ctx context.Context) ([]aggregator.Version, error) {
	versions, err := s.registry.Versions(ctx, s.network, BridgeContract)
	if err != nil {
		return nil, err
	}

	out := make([]aggregator.Version, len(versions))
	for i, v := range versions {
		out[i] = aggregator.Version{
			Release: v.Release,
			Tag:     v.Tag,
			Commit:  v.Commit,
			Date:    v.Date,
			Address: v.Address,
		}
	}
	return out, nil
}

// PastWithdrawals fetches every withdrawal event emitted by one deployed
// bridge version, from deployment to the chain head.
func (s *Source) PastWithdrawals(ctx context.Context, v aggregator.Version) ([]aggregator.Withdrawal, error) {
	if s.bridgeABI == nil {
		abiJSON, err := s.registry.ABI(ctx, BridgeContract)
		if err != nil {
			return nil, err
		}
		s.bridgeABI = abiJSON
	}

	contract, err := ethbridge.New(v.Address, s.bridgeABI, s.backend)
	if err != nil {
		return nil, err
	}

	accounts, err := contract.EventAddresses(ctx, WithdrawalEvent, WithdrawalAccountArg)
	if err != nil {
		return nil, err
	}

	withdrawals := make([]aggregator.Withdrawal, len(accounts))
	for i, account := range accounts {
		withdrawals[i] = aggregator.Withdrawal{
			Release:  v.Release,
			Tag:      v.Tag,
			Contract: v.Address,
			Account:  account.Hex(),
		}
	}
	return withdrawals, nil
}

// EscrowedBalance queries the reward escrow contract for the escrowed SNX
// balance of one account. The escrow handle is bound to the latest deployed
// escrow version on first use.
func (s *Source) EscrowedBalance(ctx context.Context, account string) (*big.Int, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}

	if s.escrow == nil {
		escrow, err := s.resolveEscrow(ctx)
		if err != nil {
			return nil, err
		}
		s.escrow = escrow
	}

	return s.escrow.CallUint256(ctx, EscrowBalanceMethod, common.HexToAddress(account))
}

// resolveEscrow binds a handle to the most recent escrow deployment.
func (s *Source) resolveEscrow(ctx context.Context) (*ethbridge.Contract, error) {
	versions, err := s.registry.Versions(ctx, s.network, EscrowContract)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoDeployments, EscrowContract, s.network)
	}

	abiJSON, err := s.registry.ABI(ctx, EscrowContract)
	if err != nil {
		return nil, err
	}

	latest := versions[len(versions)-1]
	return ethbridge.New(latest.Address, abiJSON, s.backend)
}
