package ledger

import "time"

func isInitialOrNormal(txn Transaction) bool {
	if txn.Type != TypeInstallments || txn.Installments == nil {
		return true
	}
	return txn.Installments.Number <= 1
}

// CombineInstallments keeps a single transaction per installment plan: the first
// leg stands for the whole plan, later legs are dropped.
func CombineInstallments(txns []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txns))
	for _, txn := range txns {
		if isInitialOrNormal(txn) {
			out = append(out, txn)
		}
	}
	return out
}

// FilterOldTransactions drops transactions dated before start (the boundary is
// inclusive) and, when combineInstallments is set, collapses installment plans.
// Transactions whose date could not be parsed are kept so they stay visible.
func FilterOldTransactions(txns []Transaction, start time.Time, combineInstallments bool) []Transaction {
	if combineInstallments {
		txns = CombineInstallments(txns)
	}
	out := make([]Transaction, 0, len(txns))
	for _, txn := range txns {
		if !txn.Date.IsZero() && txn.Date.Before(start) {
			continue
		}
		out = append(out, txn)
	}
	return out
}
