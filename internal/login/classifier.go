// Package login decides how a login attempt ended when the portal gives no
// explicit answer, by polling a table of url and page matchers.
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/components/assert"
	"finscrape/internal/components/telemetry"
)

const (
	report_classify = "classify"
	report_matcher  = "matcher"
)

var ErrClassificationTimeout = errors.New("no login outcome matched")

type Classifier struct {
	timeout  time.Duration
	interval time.Duration
	tel      telemetry.API
}

// NewClassifier creates a classifier that polls every interval until timeout.
func NewClassifier(timeout, interval time.Duration, tel telemetry.API) Classifier {
	assert.NotNil(tel)
	return Classifier{
		timeout:  timeout,
		interval: interval,
		tel:      telemetry.NewScopedAPI("login", tel),
	}
}

// Classify polls table against page until a rule matches. When the deadline
// passes it returns UnknownFailure and an error wrapping ErrClassificationTimeout.
func (c Classifier) Classify(ctx context.Context, page browser.Page, table Table) (Outcome, error) {
	outcome := Pending
	err := browser.WaitUntil(
		ctx,
		"classify login outcome",
		c.timeout,
		c.interval,
		func(ctx context.Context) (bool, error) {
			outcome = c.evaluate(ctx, page, table)
			return outcome != Pending, nil
		},
	)
	if errors.Is(err, browser.ErrTimeout) {
		c.tel.ReportWarning(report_classify, err)
		return UnknownFailure, fmt.Errorf("%w: %w", ErrClassificationTimeout, err)
	}
	if err != nil {
		return UnknownFailure, err
	}
	c.tel.ReportDebug("login outcome", outcome.String())
	return outcome, nil
}

func (c Classifier) evaluate(ctx context.Context, page browser.Page, table Table) Outcome {
	for _, rule := range table {
		for _, matcher := range rule.Matchers {
			ok, err := matcher.Match(ctx, page)
			if err != nil {
				if ctx.Err() == nil {
					c.tel.ReportWarning(report_matcher, fmt.Errorf("%s: %w", matcher.Description, err), rule.Outcome.String())
				}
				continue
			}
			if ok {
				return rule.Outcome
			}
		}
	}
	return Pending
}
