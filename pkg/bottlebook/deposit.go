package bottlebook

// Default per-unit deposit rates in cents by bottle category. The table
// is static; unknown categories fall back to defaultDepositRateCents.
var depositRateCents = map[string]int64{
	"soft_drink": 500,
	"beer":       500,
	"water":      300,
	"juice":      400,
	"soda_crate": 1500,
}

const defaultDepositRateCents int64 = 500

// DepositRateCents returns the per-unit deposit rate for a category.
func DepositRateCents(category string) DepositCents {
	if rate, ok := depositRateCents[category]; ok {
		return DepositCents(rate)
	}
	return DepositCents(defaultDepositRateCents)
}

// DefaultDeposit computes the deposit for a transaction when the caller
// does not supply one. Approved customers are exempt from deposit
// collection on issue; returns always compute a refund regardless of
// trust status.
func DefaultDeposit(trust TrustStatus, transactionType TransactionType, category string, bottles BottleCount) DepositCents {
	switch transactionType {
	case TransactionIssue:
		if trust == TrustApproved {
			return 0
		}
		return DepositCents(DepositRateCents(category).Int64() * int64(bottles.Int()))
	case TransactionReturn:
		return DepositCents(DepositRateCents(category).Int64() * int64(bottles.Int()))
	}
	return 0
}
