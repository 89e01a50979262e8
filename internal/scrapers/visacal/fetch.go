package visacal

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/harvest"
	"finscrape/internal/htmlutil"
	"finscrape/internal/ledger"
	"finscrape/internal/scraper"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_future_debits = "future-debits"
	report_transactions  = "transactions"
)

var (
	chargeDatePattern  = regexp.MustCompile(`\d{1,2}/\d{2}/\d{2,4}`)
	bankAccountPattern = regexp.MustCompile(`\d+-\d+`)
)

// StartDate returns the first day transactions are fetched from, the portal
// keeps a year of history so requested dates earlier than that are moved up.
func StartDate(now, requested time.Time) time.Time {
	year, month, day := now.AddDate(-1, 0, 1).Date()
	earliest := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	if requested.IsZero() || requested.Before(earliest) {
		return earliest
	}
	return requested
}

func (s Scraper) FetchData(ctx context.Context, page browser.Page, opts scraper.FetchOptions) (ledger.ScrapeResult, error) {
	start := StartDate(s.clock.Now(), opts.StartDate)
	s.tel.ReportDebug("fetch transactions starting", start.Format(time.DateOnly))

	futureDebits, err := s.futureDebits(ctx, page)
	if err != nil {
		return ledger.ScrapeResult{}, fmt.Errorf("future debits: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	err = page.Navigate(navCtx, TransactionsURL)
	cancel()
	if err != nil {
		return ledger.ScrapeResult{}, fmt.Errorf("navigate to transactions: %w", err)
	}

	h := harvest.NewHarvester(page, Selectors, harvest.Options{
		StartDate:           start,
		CombineInstallments: opts.CombineInstallments,
		MissingStartPeriod:  s.opts.MissingStartPeriod,
		SettleDelay:         s.opts.SettleDelay,
		ElementTimeout:      s.opts.ElementTimeout,
		Location:            start.Location(),
	}, s.tel)
	accounts, err := h.HarvestAll(ctx)
	if err != nil {
		return ledger.ScrapeResult{}, err
	}

	for _, acc := range accounts {
		s.tel.ReportCount(report_transactions, int64(len(acc.Transactions)))
	}
	return ledger.ScrapeResult{
		Success:      true,
		Accounts:     accounts,
		FutureDebits: futureDebits,
	}, nil
}

func (s Scraper) futureDebits(ctx context.Context, page browser.Page) ([]ledger.FutureDebit, error) {
	loc := s.clock.Now().Location()
	return browser.EvalAll(ctx, page, ".homepage-banks-top", func(bank *goquery.Selection) (ledger.FutureDebit, bool) {
		amount := ledger.ParseAmount(htmlutil.Text(bank.Find(".amount")))
		chargeDate := chargeDatePattern.FindString(htmlutil.Text(bank.Find(".when-charge")))
		bankAccount := bankAccountPattern.FindString(htmlutil.Text(bank.Find(".bankDesc")))

		debit := ledger.FutureDebit{
			Amount:            amount.Amount,
			AmountCurrency:    amount.Currency,
			ChargeDate:        ledger.ParseTransactionDate(chargeDate, loc),
			BankAccountNumber: bankAccount,
		}
		if !debit.Amount.Valid || debit.ChargeDate.IsZero() {
			s.tel.ReportWarning(report_future_debits, "unparsable amount or charge date", bankAccount)
		}
		return debit, true
	})
}
