package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/components/assert"
	"finscrape/internal/components/dump"
	"finscrape/internal/components/telemetry"
	"finscrape/internal/ledger"
	"finscrape/internal/login"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("finscrape/scraper")

const (
	report_login        = "login"
	report_fetch        = "fetch"
	report_transactions = "transactions"
	report_dump         = "dump"
)

type Options struct {
	FetchOptions
	// OnProgress is called synchronously for every progress event.
	OnProgress func(ProgressEvent)
	// LoginTimeout bounds how long the login outcome is polled for.
	LoginTimeout  time.Duration
	LoginInterval time.Duration
	// Dump receives the page html whenever a scrape fails.
	Dump dump.Output
}

type Orchestrator struct {
	scraper Scraper
	opts    Options
	tel     telemetry.API
}

func NewOrchestrator(scraper Scraper, opts Options, tel telemetry.API) Orchestrator {
	assert.NotNil(scraper)
	assert.NotNil(tel)
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 30 * time.Second
	}
	if opts.LoginInterval <= 0 {
		opts.LoginInterval = time.Second
	}
	if opts.Dump == nil {
		opts.Dump = dump.Discard{}
	}
	return Orchestrator{
		scraper: scraper,
		opts:    opts,
		tel:     telemetry.NewScopedAPI("scraper", tel),
	}
}

func (o Orchestrator) emit(event ProgressEvent) {
	o.tel.ReportDebug("progress", string(event))
	if o.opts.OnProgress != nil {
		o.opts.OnProgress(event)
	}
}

// Scrape logs in with creds on page and collects the ledger. It never returns a
// partially successful result, failures are described by ErrorType.
func (o Orchestrator) Scrape(ctx context.Context, page browser.Page, creds Credentials) ledger.ScrapeResult {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	o.emit(ProgressInitializing)
	defer o.emit(ProgressTerminating)
	o.emit(ProgressStartScraping)

	outcome, err := o.Login(ctx, page, creds)
	span.SetAttributes(attribute.String("login.outcome", outcome.String()))
	if outcome != login.Success {
		span.SetStatus(codes.Error, "login failed")
		o.dumpPage(ctx, page, "login-"+outcome.String())
		return loginFailure(outcome, err)
	}

	result, err := o.fetch(ctx, page)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch data")
		o.tel.ReportBroken(report_fetch, err)
		o.dumpPage(ctx, page, "fetch")
		return failure(err)
	}

	o.tel.ReportCount(report_transactions, int64(result.TransactionCount()))
	o.emit(ProgressEndScraping)
	return result
}

func (o Orchestrator) dumpPage(ctx context.Context, page browser.Page, stage string) {
	content, err := page.HTML(ctx)
	if err != nil {
		o.tel.ReportWarning(report_dump, err, stage)
		return
	}
	o.opts.Dump.Write(fmt.Sprintf("%s.html", stage), content)
}

func (o Orchestrator) fetch(ctx context.Context, page browser.Page) (ledger.ScrapeResult, error) {
	ctx, span := tracer.Start(ctx, "FetchData")
	defer span.End()

	result, err := o.scraper.FetchData(ctx, page, o.opts.FetchOptions)
	if err != nil {
		return ledger.ScrapeResult{}, err
	}
	if !result.Success && result.ErrorType == "" {
		return ledger.ScrapeResult{}, errors.New("connector reported failure without a reason")
	}
	return result, nil
}

// Login runs the login flow and returns the terminal outcome it reached. A
// non-nil error is returned with UnknownFailure when the flow could not run to
// the point of classification.
func (o Orchestrator) Login(ctx context.Context, page browser.Page, creds Credentials) (login.Outcome, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	o.emit(ProgressLoggingIn)
	attempt := login.NewAttempt()
	opts := o.scraper.LoginOptions(creds)

	outcome, err := o.login(ctx, page, opts)
	if err != nil {
		span.RecordError(err)
		o.tel.ReportWarning(report_login, err)
	}
	resolveErr := attempt.Resolve(outcome)
	if resolveErr != nil {
		return login.UnknownFailure, resolveErr
	}

	switch attempt.State() {
	case login.Success:
		o.emit(ProgressLoginSuccess)
	case login.ChangePassword:
		o.emit(ProgressChangePassword)
	default:
		o.emit(ProgressLoginFailed)
	}
	return attempt.State(), err
}

func (o Orchestrator) login(ctx context.Context, page browser.Page, opts LoginOptions) (login.Outcome, error) {
	if opts.UserAgent != "" {
		err := page.SetUserAgent(ctx, opts.UserAgent)
		if err != nil {
			return login.UnknownFailure, fmt.Errorf("set user agent: %w", err)
		}
	}

	err := page.Navigate(ctx, opts.LoginURL)
	if err != nil {
		return login.UnknownFailure, err
	}
	if opts.CheckReadiness != nil {
		err = opts.CheckReadiness(ctx, page)
		if err != nil {
			return login.UnknownFailure, fmt.Errorf("login surface not ready: %w", err)
		}
	}

	var surface browser.Surface = page
	if opts.PreAction != nil {
		target, err := opts.PreAction(ctx, page)
		if err != nil {
			return login.UnknownFailure, fmt.Errorf("login pre-action: %w", err)
		}
		if target != nil {
			surface = target
		}
	}

	for _, field := range opts.Fields {
		err = surface.Type(ctx, field.Selector, field.Value)
		if err != nil {
			return login.UnknownFailure, fmt.Errorf("fill %s: %w", field.Selector, err)
		}
	}
	err = surface.Click(ctx, opts.SubmitSelector)
	if err != nil {
		return login.UnknownFailure, fmt.Errorf("submit login: %w", err)
	}

	classifier := login.NewClassifier(o.opts.LoginTimeout, o.opts.LoginInterval, o.tel)
	return classifier.Classify(ctx, page, opts.PossibleResults)
}

func loginFailure(outcome login.Outcome, err error) ledger.ScrapeResult {
	switch outcome {
	case login.InvalidPassword:
		return ledger.ScrapeResult{ErrorType: ledger.ErrorInvalidPassword}
	case login.ChangePassword:
		return ledger.ScrapeResult{ErrorType: ledger.ErrorChangePassword}
	case login.AccountBlocked:
		return ledger.ScrapeResult{ErrorType: ledger.ErrorAccountBlocked}
	}
	if err == nil {
		err = fmt.Errorf("unexpected login outcome %s", outcome)
	}
	return failure(err)
}

// failure maps err to a failed result, deadline related errors are reported as
// timeouts.
func failure(err error) ledger.ScrapeResult {
	errorType := ledger.ErrorGeneric
	if errors.Is(err, browser.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		errorType = ledger.ErrorTimeout
	}
	return ledger.ScrapeResult{
		ErrorType:    errorType,
		ErrorMessage: err.Error(),
	}
}
