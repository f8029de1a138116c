package aggregator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/screwyprof/escrowscan/aggregator"
)

func TestUniqueParticipants(t *testing.T) {
	t.Parallel()

	t.Run("it keeps first-seen order", func(t *testing.T) {
		t.Parallel()

		events := withdrawalsFor("0xA", "0xB", "0xA", "0xC", "0xB")

		unique := aggregator.UniqueParticipants(events)

		assert.Equal(t, []string{"0xa", "0xb", "0xc"}, unique)
	})

	t.Run("it deduplicates across casings of the same address", func(t *testing.T) {
		t.Parallel()

		events := withdrawalsFor("0xAbC", "0xABC", "0xabc")

		unique := aggregator.UniqueParticipants(events)

		assert.Equal(t, []string{"0xabc"}, unique)
	})

	t.Run("it returns an empty set for no events", func(t *testing.T) {
		t.Parallel()

		unique := aggregator.UniqueParticipants(nil)

		assert.Empty(t, unique)
	})
}

func withdrawalsFor(accounts ...string) []aggregator.Withdrawal {
	withdrawals := make([]aggregator.Withdrawal, len(accounts))
	for i, account := range accounts {
		withdrawals[i] = aggregator.Withdrawal{Account: account}
	}
	return withdrawals
}
