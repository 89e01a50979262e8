package login

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"finscrape/internal/browser"
	"finscrape/internal/htmlutil"
)

type MatcherKind int

const (
	KindPattern MatcherKind = iota
	KindPredicate
)

// Predicate inspects the current page, it must not mutate it.
type Predicate func(ctx context.Context, page browser.Page) (bool, error)

// Matcher is a single signal that a login reached some outcome, either the url
// the browser ended up on or a predicate over the page.
type Matcher struct {
	Kind        MatcherKind
	Description string
	Pattern     *regexp.Regexp
	Predicate   Predicate
}

func URLPattern(pattern *regexp.Regexp) Matcher {
	return Matcher{
		Kind:        KindPattern,
		Description: fmt.Sprintf("url matches %s", pattern),
		Pattern:     pattern,
	}
}

func PagePredicate(description string, predicate Predicate) Matcher {
	return Matcher{
		Kind:        KindPredicate,
		Description: description,
		Predicate:   predicate,
	}
}

func (m Matcher) Match(ctx context.Context, page browser.Page) (bool, error) {
	switch m.Kind {
	case KindPattern:
		u, err := page.URL(ctx)
		if err != nil {
			return false, err
		}
		return m.Pattern.MatchString(u), nil
	case KindPredicate:
		return m.Predicate(ctx, page)
	default:
		return false, fmt.Errorf("unknown matcher kind %d", m.Kind)
	}
}

// Rule maps an outcome to its matchers, any single one passing is enough.
type Rule struct {
	Outcome  Outcome
	Matchers []Matcher
}

// Table is evaluated in declaration order, the first rule with a passing matcher wins.
type Table []Rule

// Locator picks the surface a predicate reads from. It returns nil when the
// surface is not there (yet).
type Locator func(ctx context.Context, page browser.Page) (browser.Surface, error)

func OnPage(_ context.Context, page browser.Page) (browser.Surface, error) {
	return page, nil
}

// InFrame locates the first frame whose url contains fragment.
func InFrame(fragment string) Locator {
	return func(ctx context.Context, page browser.Page) (browser.Surface, error) {
		return browser.FrameByURL(ctx, page, func(u string) bool {
			return strings.Contains(u, fragment)
		})
	}
}

// TextEquals passes when the first element matching selector has exactly the
// expected text once whitespace is normalized. Substrings do not count.
func TextEquals(locate Locator, selector, expected string) Predicate {
	expected = htmlutil.CleanText(expected)
	return func(ctx context.Context, page browser.Page) (bool, error) {
		surface, err := locate(ctx, page)
		if err != nil {
			return false, err
		}
		if surface == nil {
			return false, nil
		}
		text, err := browser.Eval(ctx, surface, selector, "", htmlutil.Text)
		if err != nil {
			return false, err
		}
		return text == expected, nil
	}
}

// ElementExists passes when selector is present on the located surface.
func ElementExists(locate Locator, selector string) Predicate {
	return func(ctx context.Context, page browser.Page) (bool, error) {
		surface, err := locate(ctx, page)
		if err != nil {
			return false, err
		}
		if surface == nil {
			return false, nil
		}
		return browser.ElementPresent(ctx, surface, selector)
	}
}
