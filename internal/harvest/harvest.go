// Package harvest walks every billing cycle of every account a logged in session
// exposes and turns the transaction grids into a ledger.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/components/assert"
	"finscrape/internal/components/chrono"
	"finscrape/internal/components/telemetry"
	"finscrape/internal/htmlutil"
	"finscrape/internal/ledger"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_billing_cycle = "billing-cycle"
	report_anomaly       = "anomaly"
	report_start_period  = "start-period"
	report_rows          = "rows"
	report_accounts      = "accounts"
)

var (
	ErrMissingSettlementDate = errors.New("failed to resolve settlement date")
	ErrStartPeriodNotFound   = errors.New("start period not listed")
)

// Selectors locates the pieces of the transactions page.
type Selectors struct {
	// PeriodInput must be present before a billing cycle is selected.
	PeriodInput string
	// PeriodOptions lists the selectable billing cycles in order.
	PeriodOptions string
	// PeriodHidden receives the index of the selected billing cycle.
	PeriodHidden string
	Submit       string
	NextPage     string
	NoData       string
	// NoDataText is compared against the NoData element after everything but
	// spaces and hebrew letters is removed.
	NoDataText          string
	PrimarySettlement   string
	SecondarySettlement string
	Rows                string
	// Accounts are anchors whose text ends with the account identifier.
	Accounts string
}

var (
	primarySettlementPattern   = regexp.MustCompile(`\d{1,2}/\d{2}/\d{2,4}`)
	secondarySettlementPattern = regexp.MustCompile(`\d{1,2}/\d{2,4}`)
	accountNumberPattern       = regexp.MustCompile(`\d+$`)
	noDataFilter               = regexp.MustCompile(`[^ א-ת]`)
)

// StartPeriodPolicy decides what happens when the requested start period is not
// one of the selectable billing cycles.
type StartPeriodPolicy int

const (
	// ScanFromEarliest harvests every listed billing cycle.
	ScanFromEarliest StartPeriodPolicy = iota
	// FailOnMissingStart aborts the harvest with ErrStartPeriodNotFound.
	FailOnMissingStart
)

type Options struct {
	StartDate           time.Time
	CombineInstallments bool
	MissingStartPeriod  StartPeriodPolicy
	// SettleDelay is waited after the hidden period field is changed and after
	// an account is selected, the portal re-renders asynchronously.
	SettleDelay    time.Duration
	ElementTimeout time.Duration
	Location       *time.Location
}

type Harvester struct {
	page browser.Page
	sel  Selectors
	opts Options
	tel  telemetry.API
}

func NewHarvester(page browser.Page, sel Selectors, opts Options, tel telemetry.API) Harvester {
	assert.NotNil(page)
	assert.NotNil(tel)
	if opts.Location == nil {
		opts.Location = chrono.Jerusalem()
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = 30 * time.Second
	}
	return Harvester{
		page: page,
		sel:  sel,
		opts: opts,
		tel:  telemetry.NewScopedAPI("harvest", tel),
	}
}

// Accounts returns the identifiers of every account listed on the page. Anchors
// that do not end with digits are skipped.
func (h Harvester) Accounts(ctx context.Context) ([]string, error) {
	return browser.EvalAll(ctx, h.page, h.sel.Accounts, func(sel *goquery.Selection) (string, bool) {
		account := accountNumberPattern.FindString(htmlutil.Text(sel))
		if account == "" {
			h.tel.ReportWarning(report_accounts, "account link without a number", htmlutil.Text(sel))
			return "", false
		}
		return account, true
	})
}

// SelectAccount clicks every account anchor whose text contains account.
func (h Harvester) SelectAccount(ctx context.Context, account string) error {
	ids, err := browser.EvalAll(ctx, h.page, h.sel.Accounts, func(sel *goquery.Selection) (string, bool) {
		id, ok := sel.Attr("id")
		if !ok || id == "" {
			return "", false
		}
		return id, strings.Contains(htmlutil.Text(sel), account)
	})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: account %s", browser.ErrElementNotFound, lastDigits(account))
	}
	for _, id := range ids {
		err = h.page.Click(ctx, fmt.Sprintf(`[id="%s"]`, id))
		if err != nil {
			return err
		}
	}
	return chrono.Sleep(ctx, h.opts.SettleDelay)
}

// HarvestAll harvests every account in the order the page lists them.
func (h Harvester) HarvestAll(ctx context.Context) ([]ledger.AccountLedger, error) {
	accounts, err := h.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	h.tel.ReportCount("accounts", int64(len(accounts)))

	out := make([]ledger.AccountLedger, 0, len(accounts))
	for _, account := range accounts {
		h.tel.ReportDebug("setting account", "ending with", lastDigits(account))
		err = h.SelectAccount(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("select account ending with %s: %w", lastDigits(account), err)
		}
		acc, err := h.Harvest(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("account ending with %s: %w", lastDigits(account), err)
		}
		out = append(out, acc)
	}
	return out, nil
}

// StartPeriodLabel is how a billing cycle starting at t is listed.
func StartPeriodLabel(t time.Time) string {
	return t.Format("01/2006")
}

func (h Harvester) periods(ctx context.Context) ([]string, error) {
	return browser.EvalAll(ctx, h.page, h.sel.PeriodOptions, func(sel *goquery.Selection) (string, bool) {
		return htmlutil.Text(sel), true
	})
}

func (h Harvester) startIndex(periods []string) (int, error) {
	label := StartPeriodLabel(h.opts.StartDate)
	for i, period := range periods {
		if period == label {
			return i, nil
		}
	}
	if h.opts.MissingStartPeriod == FailOnMissingStart {
		return 0, fmt.Errorf("%w: %s", ErrStartPeriodNotFound, label)
	}
	h.tel.ReportWarning(report_start_period, fmt.Errorf("%w: %s, scanning from the earliest", ErrStartPeriodNotFound, label))
	return 0, nil
}

// Harvest collects the transactions of the currently selected account.
func (h Harvester) Harvest(ctx context.Context, account string) (ledger.AccountLedger, error) {
	err := browser.WaitForElement(ctx, h.page, h.sel.PeriodInput, h.opts.ElementTimeout)
	if err != nil {
		return ledger.AccountLedger{}, fmt.Errorf("billing cycle picker: %w", err)
	}
	periods, err := h.periods(ctx)
	if err != nil {
		return ledger.AccountLedger{}, fmt.Errorf("list billing cycles: %w", err)
	}
	if len(periods) == 0 {
		return ledger.AccountLedger{}, fmt.Errorf("%w: no billing cycles listed under %s", browser.ErrElementNotFound, h.sel.PeriodOptions)
	}
	start, err := h.startIndex(periods)
	if err != nil {
		return ledger.AccountLedger{}, err
	}
	h.tel.ReportDebug("scrape billing cycles", len(periods)-start)

	var txns []ledger.Transaction
	for i := start; i < len(periods); i++ {
		cycle, err := h.billingCycle(ctx, i)
		if err != nil {
			h.tel.ReportBroken(report_billing_cycle, err, periods[i])
			return ledger.AccountLedger{}, fmt.Errorf("billing cycle %s: %w", periods[i], err)
		}
		txns = append(txns, cycle...)
	}

	for _, txn := range txns {
		if txn.Anomalous() {
			h.tel.ReportWarning(report_anomaly, "unparsable amount or date", txn.Description)
		}
	}

	kept := ledger.FilterOldTransactions(txns, h.opts.StartDate, h.opts.CombineInstallments)
	h.tel.ReportDebug(
		"found valid transactions",
		len(kept), "out of", len(txns),
		"for account ending with", lastDigits(account),
	)
	return ledger.AccountLedger{
		AccountNumber: account,
		Transactions:  kept,
	}, nil
}

func (h Harvester) billingCycle(ctx context.Context, index int) ([]ledger.Transaction, error) {
	err := browser.WaitForElement(ctx, h.page, h.sel.PeriodInput, h.opts.ElementTimeout)
	if err != nil {
		return nil, err
	}
	err = h.page.SetValue(ctx, h.sel.PeriodHidden, strconv.Itoa(index))
	if err != nil {
		return nil, fmt.Errorf("select billing cycle: %w", err)
	}
	err = chrono.Sleep(ctx, h.opts.SettleDelay)
	if err != nil {
		return nil, err
	}
	err = browser.ClickAndWait(ctx, h.page, h.page, h.sel.Submit)
	if err != nil {
		return nil, fmt.Errorf("submit billing cycle: %w", err)
	}

	empty, err := h.noData(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		h.tel.ReportDebug("billing cycle has no transactions", index)
		return nil, nil
	}

	settlementDate, err := h.settlementDate(ctx)
	if err != nil {
		return nil, err
	}
	h.tel.ReportDebug("found the billing date", settlementDate)

	var txns []ledger.Transaction
	for {
		rows, err := h.rows(ctx)
		if err != nil {
			return nil, err
		}
		h.tel.ReportCount(report_rows, int64(len(rows)))

		normalized, err := ledger.Normalize(rows, settlementDate, h.opts.Location)
		if err != nil {
			return nil, err
		}
		txns = append(txns, normalized...)

		hasNext, err := browser.ElementPresent(ctx, h.page, h.sel.NextPage)
		if err != nil {
			return nil, err
		}
		if !hasNext {
			return txns, nil
		}
		err = browser.ClickAndWait(ctx, h.page, h.page, h.sel.NextPage)
		if err != nil {
			return nil, fmt.Errorf("next page: %w", err)
		}
	}
}

func (h Harvester) noData(ctx context.Context) (bool, error) {
	return browser.Eval(ctx, h.page, h.sel.NoData, false, func(sel *goquery.Selection) bool {
		text := noDataFilter.ReplaceAllString(htmlutil.Text(sel), "")
		return text == h.sel.NoDataText
	})
}

func (h Harvester) settlementDate(ctx context.Context) (string, error) {
	label, err := browser.Eval(ctx, h.page, h.sel.PrimarySettlement, "", htmlutil.Text)
	if err != nil {
		return "", err
	}
	pattern := primarySettlementPattern
	if label == "" {
		label, err = browser.Eval(ctx, h.page, h.sel.SecondarySettlement, "", htmlutil.Text)
		if err != nil {
			return "", err
		}
		pattern = secondarySettlementPattern
	}
	date := pattern.FindString(label)
	if date == "" {
		return "", fmt.Errorf("%w: label %q", ErrMissingSettlementDate, label)
	}
	return date, nil
}

// rows reads the transaction grids. A six column row carries its own processed
// date, a five column row inherits the settlement date, anything else is dropped.
func (h Harvester) rows(ctx context.Context) ([]ledger.RawRow, error) {
	return browser.EvalAll(ctx, h.page, h.sel.Rows, func(sel *goquery.Selection) (ledger.RawRow, bool) {
		cells := sel.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return htmlutil.Text(td)
		})
		switch len(cells) {
		case 6:
			return ledger.RawRow{
				HasProcessedDate: true,
				ProcessedDate:    cells[0],
				Date:             cells[1],
				Description:      cells[2],
				OriginalAmount:   cells[3],
				ChargedAmount:    cells[4],
				Memo:             cells[5],
			}, true
		case 5:
			return ledger.RawRow{
				Date:           cells[0],
				Description:    cells[1],
				OriginalAmount: cells[2],
				ChargedAmount:  cells[3],
				Memo:           cells[4],
			}, true
		default:
			return ledger.RawRow{}, false
		}
	})
}

func lastDigits(account string) string {
	if len(account) <= 2 {
		return account
	}
	return account[len(account)-2:]
}
