// Package rodpage implements browser.Page on top of a Chrome instance driven by go-rod.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finscrape/internal/browser"
	"finscrape/internal/components/telemetry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"
)

const (
	report_browser_launch = "browser.launch"
	report_browser_close  = "browser.close"
	report_page_action    = "page.action"
)

type Options struct {
	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string `json:"control_url"`
	// Bin overrides the chrome binary the launcher uses.
	Bin      string `json:"bin"`
	Headless bool   `json:"headless"`
	Proxy    string `json:"proxy"`
	// ActionsPerSecond bounds how fast clicks, typing and navigations are issued.
	ActionsPerSecond float64 `json:"actions_per_second"`
	// ActionTimeout bounds how long an action waits for its element to appear
	// and how long a click waits for the navigation it triggers.
	ActionTimeout time.Duration `json:"action_timeout"`
}

type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
	tel      telemetry.API
}

// Launch starts (or connects to) a browser.
func Launch(ctx context.Context, opts Options, tel telemetry.API) (*Browser, error) {
	tel = telemetry.NewScopedAPI("rod", tel)

	if opts.ActionsPerSecond <= 0 {
		opts.ActionsPerSecond = 4
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 30 * time.Second
	}

	controlURL := opts.ControlURL
	var l *launcher.Launcher
	if controlURL == "" {
		l = launcher.New().Context(ctx).Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		if opts.Proxy != "" {
			l = l.Proxy(opts.Proxy)
		}
		var err error
		controlURL, err = l.Launch()
		if err != nil {
			tel.ReportBroken(report_browser_launch, err)
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	}

	b := rod.New().ControlURL(controlURL)
	err := b.Connect()
	if err != nil {
		tel.ReportBroken(report_browser_launch, fmt.Errorf("connect: %w", err), controlURL)
		if l != nil {
			l.Cleanup()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	tel.ReportDebug("browser connected", controlURL)
	return &Browser{browser: b, launcher: l, opts: opts, tel: tel}, nil
}

// NewPage opens a blank tab.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	p, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	// 1 burst so actions are always spaced out
	limiter := rate.NewLimiter(rate.Limit(b.opts.ActionsPerSecond), 1)
	return &Page{
		frame: frame{
			page:          p,
			limiter:       limiter,
			actionTimeout: b.opts.ActionTimeout,
			tel:           b.tel,
		},
	}, nil
}

func (b *Browser) Close() error {
	err := b.browser.Close()
	if err != nil {
		b.tel.ReportWarning(report_browser_close, err)
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
	return err
}

type frame struct {
	page          *rod.Page
	limiter       *rate.Limiter
	actionTimeout time.Duration
	tel           telemetry.API
}

func mapElementError(ctx context.Context, selector string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	var notFound *rod.ElementNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return err
}

// element waits for selector bounded by the action timeout.
func (f frame) element(ctx context.Context, selector string) (*rod.Element, func(), error) {
	err := f.limiter.Wait(ctx)
	if err != nil {
		return nil, func() {}, err
	}
	actionCtx, cancel := context.WithTimeout(ctx, f.actionTimeout)
	el, err := f.page.Context(actionCtx).Element(selector)
	if err != nil {
		cancel()
		return nil, func() {}, mapElementError(ctx, selector, err)
	}
	return el, cancel, nil
}

func (f frame) URL(ctx context.Context) (string, error) {
	obj, err := f.page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", err
	}
	return obj.Value.Str(), nil
}

func (f frame) HTML(ctx context.Context) (string, error) {
	return f.page.Context(ctx).HTML()
}

func (f frame) Click(ctx context.Context, selector string) error {
	el, done, err := f.element(ctx, selector)
	defer done()
	if err != nil {
		return err
	}
	f.tel.ReportDebug(report_page_action, "click", selector)
	return mapElementError(ctx, selector, el.Click(proto.InputMouseButtonLeft, 1))
}

func (f frame) Type(ctx context.Context, selector, value string) error {
	el, done, err := f.element(ctx, selector)
	defer done()
	if err != nil {
		return err
	}
	// the value is a credential more often than not, never report it
	f.tel.ReportDebug(report_page_action, "type", selector)
	_, err = el.Eval(`() => { this.value = "" }`)
	if err != nil {
		return err
	}
	return mapElementError(ctx, selector, el.Input(value))
}

func (f frame) SetValue(ctx context.Context, selector, value string) error {
	el, done, err := f.element(ctx, selector)
	defer done()
	if err != nil {
		return err
	}
	f.tel.ReportDebug(report_page_action, "set-value", selector)
	_, err = el.Eval(`(v) => { this.value = v }`, value)
	return err
}

type Page struct {
	frame
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	err := p.limiter.Wait(ctx)
	if err != nil {
		return err
	}
	p.tel.ReportDebug(report_page_action, "navigate", url)

	page := p.page.Context(ctx)
	err = page.Navigate(url)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return page.WaitLoad()
}

func (p *Page) Frames(ctx context.Context) ([]browser.Surface, error) {
	iframes, err := p.page.Context(ctx).Elements("iframe")
	if err != nil {
		return nil, err
	}
	var frames []browser.Surface
	for _, iframe := range iframes {
		framePage, err := iframe.Frame()
		if err != nil {
			// frames come and go while the page renders
			continue
		}
		frames = append(frames, frame{
			page:          framePage,
			limiter:       p.limiter,
			actionTimeout: p.actionTimeout,
			tel:           p.tel,
		})
	}
	return frames, nil
}

// WaitForNavigation runs action and waits for the page it triggers, for at
// most the action timeout.
func (p *Page) WaitForNavigation(ctx context.Context, action func(ctx context.Context) error) error {
	navCtx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()

	wait := p.page.Context(navCtx).WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	err := action(ctx)
	if err != nil {
		return err
	}
	wait()
	return mapNavigationError(ctx, navCtx.Err(), p.actionTimeout)
}

// mapNavigationError turns the navigation deadline into browser.ErrTimeout,
// cancellation of the parent context is passed through.
func mapNavigationError(parent context.Context, err error, timeout time.Duration) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
		return fmt.Errorf("%w: no navigation after %s", browser.ErrTimeout, timeout)
	}
	return err
}

func (p *Page) SetUserAgent(ctx context.Context, userAgent string) error {
	return p.page.Context(ctx).SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: userAgent,
	})
}

func (p *Page) Close() error {
	return p.page.Close()
}
