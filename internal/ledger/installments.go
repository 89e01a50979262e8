package ledger

import (
	"regexp"
	"strconv"
)

// "payment N of M", as rendered in Hebrew or English memos
var installmentsRegex = regexp.MustCompile(`(?i)(?:תשלום|payment) (\d+) (?:מתוך|of) (\d+)`)

// DetectInstallments extracts the installment leg out of a memo, or returns nil
// when the memo does not describe one. Legs outside 1..total are not installments.
func DetectInstallments(memo string) *Installments {
	groups := installmentsRegex.FindStringSubmatch(memo)
	if len(groups) < 3 {
		return nil
	}
	number, err := strconv.Atoi(groups[1])
	if err != nil {
		return nil
	}
	total, err := strconv.Atoi(groups[2])
	if err != nil {
		return nil
	}
	if number < 1 || number > total {
		return nil
	}
	return &Installments{Number: number, Total: total}
}
