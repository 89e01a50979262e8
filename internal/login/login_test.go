package login

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/browser/browsertest"
	"finscrape/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

const invalidPasswordText = "שם המשתמש או הסיסמה שהוזנו שגויים"

func testTable() Table {
	return Table{
		{
			Outcome:  Success,
			Matchers: []Matcher{URLPattern(regexp.MustCompile(`(?i)/AccountManagement`))},
		},
		{
			Outcome: InvalidPassword,
			Matchers: []Matcher{
				PagePredicate(
					"invalid credentials message",
					TextEquals(InFrame("calconnect"), "div.general-error > div", invalidPasswordText),
				),
			},
		},
		{Outcome: AccountBlocked},
		{Outcome: ChangePassword},
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		frame    *browsertest.Frame
		expected Outcome
	}{
		{
			name:     "success url",
			url:      "https://digital-web.cal-online.co.il/accountmanagement/home",
			expected: Success,
		},
		{
			name: "exact error text",
			url:  "https://www.cal-online.co.il/",
			frame: browsertest.NewFrame(
				"https://connect.cal-online.co.il/calconnect/login",
				`<div class="general-error"><div> `+invalidPasswordText+` </div></div>`,
			),
			expected: InvalidPassword,
		},
		{
			name: "error text with a suffix is not a match",
			url:  "https://www.cal-online.co.il/",
			frame: browsertest.NewFrame(
				"https://connect.cal-online.co.il/calconnect/login",
				`<div class="general-error"><div>`+invalidPasswordText+`, נסו שוב</div></div>`,
			),
			expected: UnknownFailure,
		},
		{
			name: "error text in an unrelated frame",
			url:  "https://www.cal-online.co.il/",
			frame: browsertest.NewFrame(
				"https://ads.example.com/",
				`<div class="general-error"><div>`+invalidPasswordText+`</div></div>`,
			),
			expected: UnknownFailure,
		},
		{
			name:     "nothing happened",
			url:      "https://www.cal-online.co.il/",
			expected: UnknownFailure,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := browsertest.NewPage("<html></html>")
			page.SetURL(tc.url)
			if tc.frame != nil {
				page.AddFrame(tc.frame)
			}

			rec := &telemetry.Recorder{}
			classifier := NewClassifier(50*time.Millisecond, 5*time.Millisecond, rec)
			outcome, err := classifier.Classify(context.Background(), page, testTable())
			require.Equal(t, tc.expected, outcome)

			if tc.expected == UnknownFailure {
				require.ErrorIs(t, err, ErrClassificationTimeout)
				require.ErrorIs(t, err, browser.ErrTimeout)
				require.NotEmpty(t, rec.Find("warning", report_classify))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestClassifyDeclarationOrder(t *testing.T) {
	page := browsertest.NewPage("<html><div id='blocked'></div></html>")
	page.SetURL("https://bank.example.com/AccountManagement")

	table := Table{
		{Outcome: AccountBlocked, Matchers: []Matcher{
			PagePredicate("blocked notice", ElementExists(OnPage, "#blocked")),
		}},
		{Outcome: Success, Matchers: []Matcher{
			URLPattern(regexp.MustCompile(`AccountManagement`)),
		}},
	}

	classifier := NewClassifier(time.Second, 5*time.Millisecond, &telemetry.Recorder{})
	outcome, err := classifier.Classify(context.Background(), page, table)
	require.NoError(t, err)
	require.Equal(t, AccountBlocked, outcome)
}

func TestClassifyWaitsForLateSignal(t *testing.T) {
	page := browsertest.NewPage("<html></html>")
	page.SetURL("https://bank.example.com/login")

	go func() {
		time.Sleep(20 * time.Millisecond)
		page.SetURL("https://bank.example.com/AccountManagement")
	}()

	table := Table{{Outcome: Success, Matchers: []Matcher{
		URLPattern(regexp.MustCompile(`AccountManagement`)),
	}}}
	classifier := NewClassifier(time.Second, 5*time.Millisecond, &telemetry.Recorder{})
	outcome, err := classifier.Classify(context.Background(), page, table)
	require.NoError(t, err)
	require.Equal(t, Success, outcome)
}

func TestClassifyPredicateError(t *testing.T) {
	page := browsertest.NewPage("<html></html>")
	page.SetURL("https://bank.example.com/AccountManagement")

	broken := PagePredicate("broken", func(ctx context.Context, page browser.Page) (bool, error) {
		return false, errors.New("detached frame")
	})
	table := Table{
		{Outcome: InvalidPassword, Matchers: []Matcher{broken}},
		{Outcome: Success, Matchers: []Matcher{URLPattern(regexp.MustCompile(`AccountManagement`))}},
	}

	rec := &telemetry.Recorder{}
	classifier := NewClassifier(time.Second, 5*time.Millisecond, rec)
	outcome, err := classifier.Classify(context.Background(), page, table)
	require.NoError(t, err)
	require.Equal(t, Success, outcome)

	warnings := rec.Find("warning", report_matcher)
	require.Len(t, warnings, 1)
	require.Equal(t, "login: matcher", warnings[0].ID)
}

func TestAttempt(t *testing.T) {
	attempt := NewAttempt()
	require.Equal(t, Pending, attempt.State())

	require.Error(t, attempt.Resolve(Pending))
	require.Equal(t, Pending, attempt.State())

	require.NoError(t, attempt.Resolve(InvalidPassword))
	require.Equal(t, InvalidPassword, attempt.State())

	for _, next := range []Outcome{Success, UnknownFailure, InvalidPassword} {
		err := attempt.Resolve(next)
		require.ErrorIs(t, err, ErrTerminalState)
		require.Equal(t, InvalidPassword, attempt.State())
	}
}

func TestOutcomeString(t *testing.T) {
	require.Equal(t, "invalid-password", InvalidPassword.String())
	require.Equal(t, "outcome(42)", Outcome(42).String())
	require.False(t, Pending.Terminal())
	require.True(t, ChangePassword.Terminal())
}
