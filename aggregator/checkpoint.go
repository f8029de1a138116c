package aggregator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Checkpoint record errors
var (
	ErrAccountRecorded   = errors.New("account already recorded")
	ErrNegativeBalance   = errors.New("negative balance")
	ErrInvalidAmount     = errors.New("invalid amount string")
	ErrInconsistentTotal = errors.New("total does not match sum of accounts")
)

// Checkpoint is the single persisted record of aggregation progress.
// Total always equals the sum of all recorded account balances; Record is
// the only way to mutate balances, and it is write-once per account.
type Checkpoint struct {
	total          *big.Int
	numWithdrawers uint64
	accounts       map[string]*big.Int
}

// NewCheckpoint returns a zero-valued checkpoint: no total, no accounts.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		total:    new(big.Int),
		accounts: make(map[string]*big.Int),
	}
}

// NormalizeAccount case-normalizes an account identifier. All map keys go
// through this, so two casings of one address cannot double-count.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// Has reports whether the account already carries a recorded balance.
// This is the skip rule that makes accumulation resumable.
func (c *Checkpoint) Has(account string) bool {
	_, ok := c.accounts[NormalizeAccount(account)]
	return ok
}

// Record stores the balance under the account key and folds it into the
// running total. Re-recording an account is an error, never an overwrite.
func (c *Checkpoint) Record(account string, balance *big.Int) error {
	key := NormalizeAccount(account)
	if _, ok := c.accounts[key]; ok {
		return fmt.Errorf("%w: %s", ErrAccountRecorded, key)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("%w: %s for %s", ErrNegativeBalance, balance, key)
	}
	c.accounts[key] = new(big.Int).Set(balance)
	c.total.Add(c.total, balance)
	return nil
}

// SetNumWithdrawers records the deduplicated participant count. The count
// never decreases across snapshots, so a smaller value is ignored.
func (c *Checkpoint) SetNumWithdrawers(n uint64) {
	if n > c.numWithdrawers {
		c.numWithdrawers = n
	}
}

// Total returns a copy of the accumulated escrowed balance.
func (c *Checkpoint) Total() *big.Int {
	return new(big.Int).Set(c.total)
}

// NumWithdrawers returns the recorded unique participant count.
func (c *Checkpoint) NumWithdrawers() uint64 {
	return c.numWithdrawers
}

// Balance returns the recorded balance for an account, or nil if absent.
func (c *Checkpoint) Balance(account string) *big.Int {
	bal, ok := c.accounts[NormalizeAccount(account)]
	if !ok {
		return nil
	}
	return new(big.Int).Set(bal)
}

// Recorded returns the number of accounts with a recorded balance.
func (c *Checkpoint) Recorded() int {
	return len(c.accounts)
}

// checkpointJSON is the persisted document layout. All amounts are decimal
// strings to avoid precision loss on token amounts.
type checkpointJSON struct {
	TotalEscrowedSNX string            `json:"totalEscrowedSNX"`
	NumWithdrawers   string            `json:"numWithdrawers"`
	Accounts         map[string]string `json:"accounts"`
}

// MarshalJSON serializes the full snapshot in the report document layout.
func (c *Checkpoint) MarshalJSON() ([]byte, error) {
	doc := checkpointJSON{
		TotalEscrowedSNX: c.total.String(),
		NumWithdrawers:   strconv.FormatUint(c.numWithdrawers, 10),
		Accounts:         make(map[string]string, len(c.accounts)),
	}
	for account, balance := range c.accounts {
		doc.Accounts[account] = balance.String()
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores a snapshot and verifies the total/sum invariant,
// so a tampered or truncated document is rejected at load time.
func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var doc checkpointJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	total, ok := new(big.Int).SetString(doc.TotalEscrowedSNX, 10)
	if !ok {
		return fmt.Errorf("%w: totalEscrowedSNX %q", ErrInvalidAmount, doc.TotalEscrowedSNX)
	}

	numWithdrawers, err := strconv.ParseUint(doc.NumWithdrawers, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: numWithdrawers %q", ErrInvalidAmount, doc.NumWithdrawers)
	}

	accounts := make(map[string]*big.Int, len(doc.Accounts))
	sum := new(big.Int)
	for account, amount := range doc.Accounts {
		balance, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return fmt.Errorf("%w: %q for %s", ErrInvalidAmount, amount, account)
		}
		accounts[NormalizeAccount(account)] = balance
		sum.Add(sum, balance)
	}

	if sum.Cmp(total) != 0 {
		return fmt.Errorf("%w: total %s, sum %s", ErrInconsistentTotal, total, sum)
	}

	c.total = total
	c.numWithdrawers = numWithdrawers
	c.accounts = accounts
	return nil
}
