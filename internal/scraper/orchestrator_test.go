package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/browser/browsertest"
	"finscrape/internal/components/telemetry"
	"finscrape/internal/ledger"
	"finscrape/internal/login"

	"github.com/stretchr/testify/require"
)

const loginHTML = `<html><body>
<input id="user"><input id="pass" type="password">
<button id="submit">login</button>
<div id="error"></div>
</body></html>`

type fakeScraper struct {
	result   ledger.ScrapeResult
	err      error
	fetched  bool
	fetchOpt FetchOptions
	preFrame *browsertest.Frame
}

func (f *fakeScraper) LoginOptions(creds Credentials) LoginOptions {
	opts := LoginOptions{
		LoginURL: "https://bank.example.com/login",
		Fields: []Field{
			{Selector: "#user", Value: creds["username"]},
			{Selector: "#pass", Value: creds["password"]},
		},
		SubmitSelector: "#submit",
		PossibleResults: login.Table{
			{Outcome: login.Success, Matchers: []login.Matcher{
				login.URLPattern(regexp.MustCompile(`/dashboard`)),
			}},
			{Outcome: login.InvalidPassword, Matchers: []login.Matcher{
				login.PagePredicate("bad password", login.TextEquals(login.OnPage, "#error", "wrong password")),
			}},
			{Outcome: login.ChangePassword, Matchers: []login.Matcher{
				login.URLPattern(regexp.MustCompile(`/change-password`)),
			}},
			{Outcome: login.AccountBlocked, Matchers: []login.Matcher{
				login.URLPattern(regexp.MustCompile(`/blocked`)),
			}},
		},
		CheckReadiness: func(ctx context.Context, page browser.Page) error {
			return browser.WaitForElement(ctx, page, "#submit", time.Second)
		},
		UserAgent: "test-agent",
	}
	if f.preFrame != nil {
		opts.PreAction = func(ctx context.Context, page browser.Page) (browser.Surface, error) {
			return f.preFrame, nil
		}
	}
	return opts
}

func (f *fakeScraper) FetchData(ctx context.Context, page browser.Page, opts FetchOptions) (ledger.ScrapeResult, error) {
	f.fetched = true
	f.fetchOpt = opts
	return f.result, f.err
}

var testCreds = Credentials{"username": "user", "password": "hunter2"}

func newLoginPage(afterSubmit func(page *browsertest.Page)) *browsertest.Page {
	page := browsertest.NewPage(loginHTML)
	page.OnClick("#submit", func(ctx context.Context) error {
		afterSubmit(page)
		return nil
	})
	return page
}

func TestScrapeLoginOutcomes(t *testing.T) {
	cases := []struct {
		name      string
		submit    func(page *browsertest.Page)
		errorType ledger.ErrorType
		progress  ProgressEvent
	}{
		{
			name: "invalid password",
			submit: func(page *browsertest.Page) {
				page.SetHTML(`<div id="error"> wrong password </div>`)
			},
			errorType: ledger.ErrorInvalidPassword,
			progress:  ProgressLoginFailed,
		},
		{
			name: "change password",
			submit: func(page *browsertest.Page) {
				page.SetURL("https://bank.example.com/change-password")
			},
			errorType: ledger.ErrorChangePassword,
			progress:  ProgressChangePassword,
		},
		{
			name: "account blocked",
			submit: func(page *browsertest.Page) {
				page.SetURL("https://bank.example.com/blocked")
			},
			errorType: ledger.ErrorAccountBlocked,
			progress:  ProgressLoginFailed,
		},
		{
			name:      "no signal",
			submit:    func(page *browsertest.Page) {},
			errorType: ledger.ErrorTimeout,
			progress:  ProgressLoginFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := newLoginPage(tc.submit)
			scraper := &fakeScraper{}

			var events []ProgressEvent
			rec := &telemetry.Recorder{}
			o := NewOrchestrator(scraper, Options{
				OnProgress:    func(e ProgressEvent) { events = append(events, e) },
				LoginTimeout:  50 * time.Millisecond,
				LoginInterval: 5 * time.Millisecond,
			}, rec)

			result := o.Scrape(context.Background(), page, testCreds)
			require.False(t, result.Success)
			require.Equal(t, tc.errorType, result.ErrorType)
			require.Empty(t, result.Accounts)
			require.False(t, scraper.fetched)
			require.Contains(t, events, tc.progress)
			require.NotContains(t, events, ProgressEndScraping)
			require.Equal(t, ProgressTerminating, events[len(events)-1])
		})
	}
}

func TestScrapeSuccess(t *testing.T) {
	page := newLoginPage(func(page *browsertest.Page) {
		page.SetURL("https://bank.example.com/dashboard")
	})
	scraper := &fakeScraper{
		result: ledger.ScrapeResult{
			Success: true,
			Accounts: []ledger.AccountLedger{
				{AccountNumber: "1234", Transactions: []ledger.Transaction{{Description: "a"}, {Description: "b"}}},
			},
		},
	}

	var events []ProgressEvent
	rec := &telemetry.Recorder{}
	start := time.Date(2023, time.March, 1, 0, 0, 0, 0, time.UTC)
	o := NewOrchestrator(scraper, Options{
		FetchOptions:  FetchOptions{StartDate: start, CombineInstallments: true},
		OnProgress:    func(e ProgressEvent) { events = append(events, e) },
		LoginTimeout:  time.Second,
		LoginInterval: 5 * time.Millisecond,
	}, rec)

	result := o.Scrape(context.Background(), page, testCreds)
	require.True(t, result.Success)
	require.Equal(t, 2, result.TransactionCount())
	require.Equal(t, FetchOptions{StartDate: start, CombineInstallments: true}, scraper.fetchOpt)

	require.Equal(t, []ProgressEvent{
		ProgressInitializing,
		ProgressStartScraping,
		ProgressLoggingIn,
		ProgressLoginSuccess,
		ProgressEndScraping,
		ProgressTerminating,
	}, events)

	require.Equal(t, []string{"https://bank.example.com/login"}, page.Visited())
	require.Equal(t, "user", page.Typed("#user"))
	require.Equal(t, "hunter2", page.Typed("#pass"))
	require.Equal(t, "test-agent", page.UserAgent())

	counts := rec.Find("count", report_transactions)
	require.Len(t, counts, 1)
	require.EqualValues(t, 2, counts[0].Count)

	for _, report := range rec.Reports() {
		require.NotContains(t, fmt.Sprint(report.Params...), "hunter2")
	}
}

func TestScrapePreActionSurface(t *testing.T) {
	frame := browsertest.NewFrame("https://bank.example.com/connect", `<input id="user"><input id="pass"><button id="submit"></button>`)
	page := browsertest.NewPage(`<button id="submit">outer</button>`)
	frame.OnClick("#submit", func(ctx context.Context) error {
		page.SetURL("https://bank.example.com/dashboard")
		return nil
	})
	scraper := &fakeScraper{preFrame: frame, result: ledger.ScrapeResult{Success: true}}

	o := NewOrchestrator(scraper, Options{LoginTimeout: time.Second, LoginInterval: 5 * time.Millisecond}, &telemetry.Recorder{})
	result := o.Scrape(context.Background(), page, testCreds)
	require.True(t, result.Success)
	require.Equal(t, "user", frame.Typed("#user"))
	require.Empty(t, page.Clicks())
	require.Equal(t, []string{"#submit"}, frame.Clicks())
}

func TestScrapeFetchFailure(t *testing.T) {
	success := func(page *browsertest.Page) {
		page.SetURL("https://bank.example.com/dashboard")
	}

	cases := []struct {
		name      string
		err       error
		result    ledger.ScrapeResult
		errorType ledger.ErrorType
	}{
		{
			name:      "missing element",
			err:       fmt.Errorf("billing cycle: %w", browser.ErrElementNotFound),
			errorType: ledger.ErrorGeneric,
		},
		{
			name:      "wait timed out",
			err:       fmt.Errorf("%w: wait for element #x", browser.ErrTimeout),
			errorType: ledger.ErrorTimeout,
		},
		{
			name:      "failure without a reason",
			result:    ledger.ScrapeResult{Success: false},
			errorType: ledger.ErrorGeneric,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &telemetry.Recorder{}
			scraper := &fakeScraper{result: tc.result, err: tc.err}
			o := NewOrchestrator(scraper, Options{LoginTimeout: time.Second, LoginInterval: 5 * time.Millisecond}, rec)

			result := o.Scrape(context.Background(), newLoginPage(success), testCreds)
			require.False(t, result.Success)
			require.Equal(t, tc.errorType, result.ErrorType)
			require.NotEmpty(t, result.ErrorMessage)
			require.Len(t, rec.Find("broken", report_fetch), 1)
		})
	}
}

func TestScrapeLoginSurfaceMissing(t *testing.T) {
	page := browsertest.NewPage(`<html></html>`)
	o := NewOrchestrator(&fakeScraper{}, Options{}, &telemetry.Recorder{})

	outcome, err := o.Login(context.Background(), page, testCreds)
	require.Equal(t, login.UnknownFailure, outcome)
	require.ErrorIs(t, err, browser.ErrElementNotFound)
	require.True(t, errors.Is(err, browser.ErrTimeout))
}

func TestPreflight(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("user-agent")
		if r.URL.Path == "/down" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := &telemetry.Recorder{}
	client, err := NewPreflightClient("test-agent", rec)
	require.NoError(t, err)

	require.NoError(t, Preflight(context.Background(), client, srv.URL+"/"))
	require.Equal(t, "test-agent", agent)
	require.NotEmpty(t, rec.Find("debug", "resty.request"))

	err = Preflight(context.Background(), client, srv.URL+"/down")
	require.ErrorContains(t, err, "503")
}

type memoryDump map[string]string

func (m memoryDump) Write(id, contents string) {
	m[id] = contents
}

func TestScrapeDumpsPageOnFailure(t *testing.T) {
	page := newLoginPage(func(page *browsertest.Page) {
		page.SetHTML(`<div id="error">wrong password</div>`)
	})
	dumps := memoryDump{}
	o := NewOrchestrator(&fakeScraper{}, Options{
		LoginTimeout:  time.Second,
		LoginInterval: 5 * time.Millisecond,
		Dump:          dumps,
	}, &telemetry.Recorder{})

	result := o.Scrape(context.Background(), page, testCreds)
	require.Equal(t, ledger.ErrorInvalidPassword, result.ErrorType)
	require.Equal(t, memoryDump{"login-invalid-password.html": `<div id="error">wrong password</div>`}, dumps)
}
