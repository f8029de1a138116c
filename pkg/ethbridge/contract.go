// Package ethbridge provides a read-only handle to a deployed contract:
// historical event fetch by topic filter and view-method calls, on top of
// any backend exposing the go-ethereum FilterLogs/CallContract surface.
package ethbridge

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Sentinel errors for contract operations
var (
	ErrInvalidAddress     = errors.New("invalid contract address")
	ErrInvalidABI         = errors.New("invalid contract ABI")
	ErrUnknownEvent       = errors.New("unknown event")
	ErrUnknownArgument    = errors.New("unknown event argument")
	ErrMissingParticipant = errors.New("event log missing participant topic")
	ErrFilterFailed       = errors.New("log filter failed")
	ErrCallFailed         = errors.New("contract call failed")
)

// Backend is the read-only RPC surface the handle needs.
// *ethclient.Client satisfies it.
type Backend interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Contract is a read-only handle bound to one deployed contract instance
type Contract struct {
	address common.Address
	abi     abi.ABI
	backend Backend
}

// New binds a handle to the deployed instance at address, described by the
// given ABI JSON.
func New(address string, abiJSON []byte, backend Backend) (*Contract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	parsed, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidABI, err)
	}

	return &Contract{
		address: common.HexToAddress(address),
		abi:     parsed,
		backend: backend,
	}, nil
}

// Address returns the bound deployment address.
func (c *Contract) Address() common.Address {
	return c.address
}

// EventAddresses fetches every eventName log emitted by the contract from
// genesis to the chain head and extracts the indexed address argument named
// argName, in chronological order. A log without the expected topic is a
// hard error; there is no best-effort skip for malformed events.
func (c *Contract) EventAddresses(ctx context.Context, eventName, argName string) ([]common.Address, error) {
	event, ok := c.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, eventName)
	}

	topicIndex, err := indexedArgPosition(event, argName)
	if err != nil {
		return nil, err
	}

	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFilterFailed, err)
	}

	addresses := make([]common.Address, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) <= topicIndex {
			return nil, fmt.Errorf("%w: %s arg %s in tx %s", ErrMissingParticipant, eventName, argName, l.TxHash)
		}
		addresses = append(addresses, common.BytesToAddress(l.Topics[topicIndex].Bytes()))
	}
	return addresses, nil
}

// CallUint256 performs a read-only call of a view method returning a single
// uint256, against the latest block.
func (c *Contract) CallUint256(ctx context.Context, method string, args ...any) (*big.Int, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: packing %s: %w", ErrCallFailed, method, err)
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCallFailed, method, err)
	}

	results, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: unpacking %s: %w", ErrCallFailed, method, err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values, want 1", ErrCallFailed, method, len(results))
	}
	value, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s did not return uint256", ErrCallFailed, method)
	}
	return value, nil
}

// indexedArgPosition resolves the topic slot of an indexed address argument.
// Topic 0 is the event signature, so the slot is the argument's position
// among indexed inputs plus one.
func indexedArgPosition(event abi.Event, argName string) (int, error) {
	position := 1
	for _, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		if input.Name == argName {
			if input.Type.T != abi.AddressTy {
				return 0, fmt.Errorf("%w: %s.%s is not an address", ErrUnknownArgument, event.Name, argName)
			}
			return position, nil
		}
		position++
	}
	return 0, fmt.Errorf("%w: no indexed argument %q on %s", ErrUnknownArgument, argName, event.Name)
}
