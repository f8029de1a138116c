package aggregator

// UniqueParticipants reduces collected withdrawal events to the withdrawer
// accounts in first-seen order. The order is stable, not sorted: it fixes
// the resumption point for accumulation, nothing else depends on it.
func UniqueParticipants(withdrawals []Withdrawal) []string {
	seen := make(map[string]struct{}, len(withdrawals))
	unique := make([]string, 0, len(withdrawals))

	for _, w := range withdrawals {
		account := NormalizeAccount(w.Account)
		if _, ok := seen[account]; ok {
			continue
		}
		seen[account] = struct{}{}
		unique = append(unique, account)
	}

	return unique
}
