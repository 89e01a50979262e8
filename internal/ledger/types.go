package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeNormal       TransactionType = "normal"
	TypeInstallments TransactionType = "installments"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusPending   TransactionStatus = "pending"
)

// Installments describes one leg of a purchase split over several billing cycles.
// Number is 1-based.
type Installments struct {
	Number int `json:"number"`
	Total  int `json:"total"`
}

// AmountTuple is a parsed monetary amount. Amount is invalid when the numeric
// part of the source text could not be parsed.
type AmountTuple struct {
	Amount   decimal.NullDecimal
	Currency string
}

// RawRow is one scraped table row before normalization.
type RawRow struct {
	// HasProcessedDate is set when the row has its own processed date column,
	// otherwise the billing cycle's settlement date applies.
	HasProcessedDate bool
	ProcessedDate    string
	Date             string
	Description      string
	OriginalAmount   string
	ChargedAmount    string
	Memo             string
}

type Transaction struct {
	Type             TransactionType     `json:"type"`
	Status           TransactionStatus   `json:"status"`
	Date             time.Time           `json:"date"`
	ProcessedDate    time.Time           `json:"processedDate"`
	OriginalAmount   decimal.NullDecimal `json:"originalAmount"`
	OriginalCurrency string              `json:"originalCurrency"`
	ChargedAmount    decimal.NullDecimal `json:"chargedAmount"`
	ChargedCurrency  string              `json:"chargedCurrency,omitempty"`
	Description      string              `json:"description"`
	Memo             string              `json:"memo,omitempty"`
	Installments     *Installments       `json:"installments,omitempty"`
}

// Anomalous reports whether the row this transaction came from had an amount or
// date that could not be parsed.
func (t Transaction) Anomalous() bool {
	return !t.OriginalAmount.Valid || !t.ChargedAmount.Valid || t.Date.IsZero()
}

type AccountLedger struct {
	AccountNumber string        `json:"accountNumber"`
	Transactions  []Transaction `json:"txns"`
}

// FutureDebit is an upcoming charge shown outside the transaction table.
type FutureDebit struct {
	Amount            decimal.NullDecimal `json:"amount"`
	AmountCurrency    string              `json:"amountCurrency"`
	ChargeDate        time.Time           `json:"chargeDate"`
	BankAccountNumber string              `json:"bankAccountNumber"`
}

type ErrorType string

const (
	ErrorInvalidPassword ErrorType = "INVALID_PASSWORD"
	ErrorChangePassword  ErrorType = "CHANGE_PASSWORD"
	ErrorAccountBlocked  ErrorType = "ACCOUNT_BLOCKED"
	ErrorTimeout         ErrorType = "TIMEOUT"
	ErrorGeneric         ErrorType = "GENERIC"
)

// ScrapeResult is what a scrape hands back to its caller. A failed scrape never
// carries accounts, so "no transactions" and "aborted" are distinguishable.
type ScrapeResult struct {
	Success      bool            `json:"success"`
	Accounts     []AccountLedger `json:"accounts,omitempty"`
	FutureDebits []FutureDebit   `json:"futureDebits,omitempty"`
	ErrorType    ErrorType       `json:"errorType,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// TransactionCount is the number of transactions over every account.
func (r ScrapeResult) TransactionCount() int {
	n := 0
	for _, acc := range r.Accounts {
		n += len(acc.Transactions)
	}
	return n
}
