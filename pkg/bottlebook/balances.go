package bottlebook

// ReplayBalances derives a customer's running state from their
// transaction log, oldest-first. Issue adds, return subtracts floored at
// zero, settle zeroes both unconditionally (the settle record's totals
// document forfeited amounts but do not participate in the arithmetic).
// Balances are never stored, so deleting a transaction simply drops it
// from the replay.
func ReplayBalances(transactions []Transaction) CustomerBalances {
	var balances CustomerBalances
	for _, transaction := range transactions {
		balances = applyTransaction(balances, transaction)
	}
	return balances
}

func applyTransaction(balances CustomerBalances, transaction Transaction) CustomerBalances {
	bottles, deposit := transaction.Totals()
	switch transaction.Type {
	case TransactionIssue:
		balances.BottlesOutstanding += bottles
		balances.DepositsHeldCents += deposit
	case TransactionReturn:
		balances.BottlesOutstanding = maxBottleCount(0, balances.BottlesOutstanding-bottles)
		balances.DepositsHeldCents = maxDepositCents(0, balances.DepositsHeldCents-deposit)
	case TransactionSettle:
		balances.BottlesOutstanding = 0
		balances.DepositsHeldCents = 0
	}
	timestamp := transaction.TimestampUnixUTC
	balances.LastTransactionUnixUTC = &timestamp
	return balances
}

func maxBottleCount(a, b BottleCount) BottleCount {
	if a > b {
		return a
	}
	return b
}

func maxDepositCents(a, b DepositCents) DepositCents {
	if a > b {
		return a
	}
	return b
}
