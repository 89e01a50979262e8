package visacal

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"finscrape/internal/browser"
	"finscrape/internal/login"
	"finscrape/internal/scraper"
)

const (
	loginButton       = "#ccLoginDesktopBtn"
	loginFrameURL     = "calconnect"
	regularLoginTab   = "#regular-login"
	regularLoginPanel = "regular-login"
	loginError        = "div.general-error > div"
)

func (s Scraper) LoginOptions(creds scraper.Credentials) scraper.LoginOptions {
	return scraper.LoginOptions{
		LoginURL: LoginURL,
		Fields: []scraper.Field{
			{Selector: `[formcontrolname="userName"]`, Value: creds["username"]},
			{Selector: `[formcontrolname="password"]`, Value: creds["password"]},
		},
		SubmitSelector:  `button[type="submit"]`,
		PossibleResults: possibleResults(),
		CheckReadiness: func(ctx context.Context, page browser.Page) error {
			return browser.WaitForElement(ctx, page, loginButton, s.opts.ElementTimeout)
		},
		PreAction: s.openLoginPopup,
		UserAgent: UserAgent,
	}
}

func possibleResults() login.Table {
	return login.Table{
		{
			Outcome: login.Success,
			Matchers: []login.Matcher{
				login.URLPattern(regexp.MustCompile(`(?i)AccountManagement`)),
			},
		},
		{
			Outcome: login.InvalidPassword,
			Matchers: []login.Matcher{
				login.PagePredicate(
					"invalid credentials message",
					login.TextEquals(login.InFrame(loginFrameURL), loginError, InvalidPasswordMessage),
				),
			},
		},
		// no known signal for these screens, the rules never match
		{Outcome: login.AccountBlocked},
		{Outcome: login.ChangePassword},
	}
}

func (s Scraper) loginFrame(ctx context.Context, page browser.Page) (browser.Surface, error) {
	frame, err := browser.FindFrame(
		ctx,
		page,
		"wait for iframe with login form",
		s.opts.FrameTimeout,
		s.opts.FrameInterval,
		func(u string) bool {
			return strings.Contains(u, loginFrameURL)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to extract login iframe: %w", err)
	}
	return frame, nil
}

// openLoginPopup opens the login overlay and switches it to the password tab,
// the credentials are filled in the returned frame.
func (s Scraper) openLoginPopup(ctx context.Context, page browser.Page) (browser.Surface, error) {
	err := browser.WaitForElement(ctx, page, loginButton, s.opts.ElementTimeout)
	if err != nil {
		return nil, err
	}
	err = page.Click(ctx, loginButton)
	if err != nil {
		return nil, err
	}

	s.tel.ReportDebug("get the frame that holds the login")
	frame, err := s.loginFrame(ctx, page)
	if err != nil {
		return nil, err
	}
	err = browser.WaitForElement(ctx, frame, regularLoginTab, s.opts.ElementTimeout)
	if err != nil {
		return nil, err
	}
	err = frame.Click(ctx, regularLoginTab)
	if err != nil {
		return nil, err
	}
	err = browser.WaitForElement(ctx, frame, regularLoginPanel, s.opts.ElementTimeout)
	if err != nil {
		return nil, err
	}
	return frame, nil
}
