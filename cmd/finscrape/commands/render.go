package commands

import (
	"fmt"
	"io"
	"time"

	"finscrape/internal/ledger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "?"
	}
	return t.Format("02/01/2006")
}

func formatAmount(amount decimal.NullDecimal, currency string) string {
	if !amount.Valid {
		return "?"
	}
	return ledger.FormatAmount(ledger.AmountTuple{Amount: amount, Currency: currency})
}

func renderResult(w io.Writer, result ledger.ScrapeResult) {
	if !result.Success {
		fmt.Fprintf(w, "scrape failed: %s", result.ErrorType)
		if result.ErrorMessage != "" {
			fmt.Fprintf(w, ": %s", result.ErrorMessage)
		}
		fmt.Fprintln(w)
		return
	}

	for _, acc := range result.Accounts {
		t := newTable(w)
		t.SetTitle(fmt.Sprintf("Account %s (%d transactions)", acc.AccountNumber, len(acc.Transactions)))
		t.AppendHeader(table.Row{"Date", "Processed", "Description", "Original", "Charged", "Installments", "Memo"})
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		})

		total := decimal.Zero
		for _, txn := range acc.Transactions {
			installments := ""
			if txn.Installments != nil {
				installments = fmt.Sprintf("%d/%d", txn.Installments.Number, txn.Installments.Total)
			}
			if txn.ChargedAmount.Valid {
				total = total.Add(txn.ChargedAmount.Decimal)
			}
			t.AppendRow(table.Row{
				formatDate(txn.Date),
				formatDate(txn.ProcessedDate),
				txn.Description,
				formatAmount(txn.OriginalAmount, txn.OriginalCurrency),
				formatAmount(txn.ChargedAmount, txn.ChargedCurrency),
				installments,
				txn.Memo,
			})
		}
		t.AppendFooter(table.Row{"", "", "Total", "", total.StringFixed(2)})
		t.Render()
	}

	if len(result.FutureDebits) == 0 {
		return
	}
	t := newTable(w)
	t.SetTitle("Future debits")
	t.AppendHeader(table.Row{"Charge date", "Amount", "Bank account"})
	for _, debit := range result.FutureDebits {
		t.AppendRow(table.Row{
			formatDate(debit.ChargeDate),
			formatAmount(debit.Amount, debit.AmountCurrency),
			debit.BankAccountNumber,
		})
	}
	t.Render()
}
