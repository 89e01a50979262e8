// Package visacal is the connector for the Cal (Visa Cal) credit card portal.
package visacal

import (
	"time"

	"finscrape/internal/components/assert"
	"finscrape/internal/components/chrono"
	"finscrape/internal/components/telemetry"
	"finscrape/internal/harvest"
	"finscrape/internal/scraper"
)

const (
	LoginURL        = "https://www.cal-online.co.il/"
	TransactionsURL = "https://services.cal-online.co.il/Card-Holders/Screens/Transactions/Transactions.aspx"
	UserAgent       = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/78.0.3904.108 Safari/537.36"

	InvalidPasswordMessage = "שם המשתמש או הסיסמה שהוזנו שגויים"
)

var Selectors = harvest.Selectors{
	PeriodInput:         `[id$="FormAreaNoBorder_FormArea_clndrDebitDateScope_TextBox"]`,
	PeriodOptions:       `[id$="FormAreaNoBorder_FormArea_clndrDebitDateScope_OptionList"] li`,
	PeriodHidden:        `[id$="FormAreaNoBorder_FormArea_clndrDebitDateScope_HiddenField"]`,
	Submit:              `[id$="FormAreaNoBorder_FormArea_ctlSubmitRequest"]`,
	NextPage:            `[id$="FormAreaNoBorder_FormArea_ctlGridPager_btnNext"]`,
	NoData:              `[id$=FormAreaNoBorder_FormArea_msgboxErrorMessages]`,
	NoDataText:          "לא נמצאו נתונים",
	PrimarySettlement:   `[id$=FormAreaNoBorder_FormArea_ctlMainToolBar_lblCaption]`,
	SecondarySettlement: `[id$=FormAreaNoBorder_FormArea_ctlSecondaryToolBar_lblCaption]`,
	Rows:                `#ctlMainGrid > tbody tr, #ctlSecondaryGrid > tbody tr`,
	Accounts:            `[id$=lnkItem]`,
}

type Options struct {
	// SettleDelay is waited after the portal is poked in ways it re-renders
	// asynchronously from.
	SettleDelay        time.Duration
	ElementTimeout     time.Duration
	NavigationTimeout  time.Duration
	FrameTimeout       time.Duration
	FrameInterval      time.Duration
	MissingStartPeriod harvest.StartPeriodPolicy
}

func DefaultOptions() Options {
	return Options{
		SettleDelay:       time.Second,
		ElementTimeout:    30 * time.Second,
		NavigationTimeout: 60 * time.Second,
		FrameTimeout:      10 * time.Second,
		FrameInterval:     time.Second,
	}
}

type Scraper struct {
	opts  Options
	clock chrono.TimeAPI
	tel   telemetry.API
}

var _ scraper.Scraper = Scraper{}

func NewScraper(opts Options, clock chrono.TimeAPI, tel telemetry.API) Scraper {
	assert.NotNil(clock)
	assert.NotNil(tel)

	defaults := DefaultOptions()
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = defaults.ElementTimeout
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = defaults.NavigationTimeout
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = defaults.FrameTimeout
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = defaults.FrameInterval
	}

	return Scraper{
		opts:  opts,
		clock: clock,
		tel:   telemetry.NewScopedAPI("visacal", tel),
	}
}
