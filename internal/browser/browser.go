// Package browser defines the narrow contract the scraping engine needs from a
// real browser, plus the DOM read helpers and bounded waits built on top of it.
//
// All interactions are sequential, a Page is owned by exactly one scrape and
// must never be used from more than one goroutine.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finscrape/internal/components/chrono"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrTimeout         = errors.New("timed out")
	ErrElementNotFound = errors.New("element not found")
)

// Surface is a document that can be read and acted upon, either a top level page
// or one of its frames.
type Surface interface {
	URL(ctx context.Context) (string, error)
	// HTML returns a snapshot of the current DOM.
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	// Type clears a field and types value into it.
	Type(ctx context.Context, selector, value string) error
	// SetValue assigns value to the element directly, used for hidden fields.
	SetValue(ctx context.Context, selector, value string) error
}

type Page interface {
	Surface
	Navigate(ctx context.Context, url string) error
	Frames(ctx context.Context) ([]Surface, error)
	// WaitForNavigation runs action and waits for the navigation it triggers, the
	// wait is armed before the action so the two cannot race.
	WaitForNavigation(ctx context.Context, action func(ctx context.Context) error) error
	SetUserAgent(ctx context.Context, userAgent string) error
}

// Document parses the current DOM of s.
func Document(ctx context.Context, s Surface) (*goquery.Document, error) {
	content, err := s.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Eval runs fn on the first element matching selector, or returns fallback when
// nothing matches.
func Eval[T any](ctx context.Context, s Surface, selector string, fallback T, fn func(*goquery.Selection) T) (T, error) {
	doc, err := Document(ctx, s)
	if err != nil {
		return fallback, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return fallback, nil
	}
	return fn(sel), nil
}

// EvalAll runs fn on every element matching selector in document order, elements
// for which fn returns false are left out.
func EvalAll[T any](ctx context.Context, s Surface, selector string, fn func(*goquery.Selection) (T, bool)) ([]T, error) {
	doc, err := Document(ctx, s)
	if err != nil {
		return nil, err
	}
	var out []T
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		value, ok := fn(sel)
		if ok {
			out = append(out, value)
		}
	})
	return out, nil
}

func ElementPresent(ctx context.Context, s Surface, selector string) (bool, error) {
	doc, err := Document(ctx, s)
	if err != nil {
		return false, err
	}
	return doc.Find(selector).Length() > 0, nil
}

// WaitUntil polls test every interval until it returns true. It fails with
// ErrTimeout once timeout elapses, and with test's error as soon as it returns one.
func WaitUntil(
	ctx context.Context,
	description string,
	timeout, interval time.Duration,
	test func(ctx context.Context) (bool, error),
) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	timedOut := func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s after %s", ErrTimeout, description, timeout)
	}

	for {
		ok, err := test(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil {
				return timedOut()
			}
			return fmt.Errorf("%s: %w", description, err)
		}
		if ok {
			return nil
		}
		if chrono.Sleep(waitCtx, interval) != nil {
			return timedOut()
		}
	}
}

const defaultPollInterval = 100 * time.Millisecond

// WaitForElement waits until selector is present on s.
func WaitForElement(ctx context.Context, s Surface, selector string, timeout time.Duration) error {
	err := WaitUntil(
		ctx,
		fmt.Sprintf("wait for element %s", selector),
		timeout,
		defaultPollInterval,
		func(ctx context.Context) (bool, error) {
			return ElementPresent(ctx, s, selector)
		},
	)
	if errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %s: %w", ErrElementNotFound, selector, err)
	}
	return err
}

// FindFrame polls the frames of p until one has a url for which match returns true.
func FindFrame(
	ctx context.Context,
	p Page,
	description string,
	timeout, interval time.Duration,
	match func(url string) bool,
) (Surface, error) {
	var found Surface
	err := WaitUntil(ctx, description, timeout, interval, func(ctx context.Context) (bool, error) {
		frame, err := FrameByURL(ctx, p, match)
		if err != nil {
			return false, err
		}
		found = frame
		return found != nil, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FrameByURL returns the first frame of p whose url satisfies match, or nil.
func FrameByURL(ctx context.Context, p Page, match func(url string) bool) (Surface, error) {
	frames, err := p.Frames(ctx)
	if err != nil {
		return nil, err
	}
	for _, frame := range frames {
		u, err := frame.URL(ctx)
		if err != nil {
			continue
		}
		if match(u) {
			return frame, nil
		}
	}
	return nil, nil
}

// ClickAndWait clicks selector on s and waits for p to navigate.
func ClickAndWait(ctx context.Context, p Page, s Surface, selector string) error {
	return p.WaitForNavigation(ctx, func(ctx context.Context) error {
		return s.Click(ctx, selector)
	})
}
