// Package scraper sequences a scrape: open the login surface, submit the
// credentials, classify the outcome and, once logged in, hand the page to the
// connector to collect its ledger.
package scraper

import (
	"context"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/ledger"
	"finscrape/internal/login"
)

// Credentials maps a login field name to its secret value. It must never be
// reported or logged.
type Credentials map[string]string

// Field is one input to fill on the login surface.
type Field struct {
	Selector string
	Value    string
}

// LoginOptions describes how to log into a portal.
type LoginOptions struct {
	LoginURL       string
	Fields         []Field
	SubmitSelector string
	// PossibleResults is evaluated in declaration order.
	PossibleResults login.Table
	// CheckReadiness blocks until the login surface can be interacted with.
	CheckReadiness func(ctx context.Context, page browser.Page) error
	// PreAction runs before the fields are filled and returns the surface they
	// live on, nil means the page itself.
	PreAction func(ctx context.Context, page browser.Page) (browser.Surface, error)
	// UserAgent identifies outbound requests.
	UserAgent string
}

type FetchOptions struct {
	// StartDate is the earliest transaction date requested, zero means the
	// connector's default window.
	StartDate           time.Time
	CombineInstallments bool
}

// Scraper is implemented by every connector.
type Scraper interface {
	LoginOptions(creds Credentials) LoginOptions
	FetchData(ctx context.Context, page browser.Page, opts FetchOptions) (ledger.ScrapeResult, error)
}

type ProgressEvent string

const (
	ProgressInitializing   ProgressEvent = "INITIALIZING"
	ProgressStartScraping  ProgressEvent = "START_SCRAPING"
	ProgressLoggingIn      ProgressEvent = "LOGGING_IN"
	ProgressLoginSuccess   ProgressEvent = "LOGIN_SUCCESS"
	ProgressLoginFailed    ProgressEvent = "LOGIN_FAILED"
	ProgressChangePassword ProgressEvent = "CHANGE_PASSWORD"
	ProgressEndScraping    ProgressEvent = "END_SCRAPING"
	ProgressTerminating    ProgressEvent = "TERMINATING"
)
