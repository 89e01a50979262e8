// Package browsertest provides an in-memory browser.Page whose DOM and reactions
// to clicks are scripted by the test.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"finscrape/internal/browser"

	"github.com/PuerkitoBio/goquery"
)

// Frame is a scripted browser.Surface.
type Frame struct {
	mu       sync.Mutex
	url      string
	html     string
	values   map[string]string
	typed    map[string]string
	clicks   []string
	handlers map[string]func(ctx context.Context) error
}

func NewFrame(url, html string) *Frame {
	return &Frame{
		url:      url,
		html:     html,
		values:   map[string]string{},
		typed:    map[string]string{},
		handlers: map[string]func(ctx context.Context) error{},
	}
}

func (f *Frame) SetHTML(html string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = html
}

func (f *Frame) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

// OnClick registers the reaction to clicking selector.
func (f *Frame) OnClick(selector string, handler func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[selector] = handler
}

// Value returns what SetValue last assigned to selector.
func (f *Frame) Value(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[selector]
}

// Typed returns what Type last entered into selector.
func (f *Frame) Typed(selector string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typed[selector]
}

// Clicks returns every clicked selector in order.
func (f *Frame) Clicks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.clicks))
	copy(out, f.clicks)
	return out
}

func (f *Frame) URL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, ctx.Err()
}

func (f *Frame) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, ctx.Err()
}

func (f *Frame) requirePresent(selector string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.html))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return nil
}

func (f *Frame) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	err := f.requirePresent(selector)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.clicks = append(f.clicks, selector)
	handler := f.handlers[selector]
	f.mu.Unlock()

	if handler == nil {
		return nil
	}
	return handler(ctx)
}

func (f *Frame) Type(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.requirePresent(selector)
	if err != nil {
		return err
	}
	f.typed[selector] = value
	return nil
}

func (f *Frame) SetValue(ctx context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.requirePresent(selector)
	if err != nil {
		return err
	}
	f.values[selector] = value
	return nil
}

// Page is a scripted browser.Page.
type Page struct {
	*Frame

	mu          sync.Mutex
	frames      []*Frame
	navigations int
	visited     []string
	userAgent   string
	onNavigate  func(url string)
}

func NewPage(html string) *Page {
	return &Page{Frame: NewFrame("about:blank", html)}
}

// OnNavigate registers the reaction to Navigate, typically swapping the HTML.
func (p *Page) OnNavigate(fn func(url string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onNavigate = fn
}

func (p *Page) AddFrame(frame *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
}

func (p *Page) RemoveFrames() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = nil
}

// Navigations counts the WaitForNavigation calls.
func (p *Page) Navigations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.navigations
}

// Visited returns every url passed to Navigate.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.visited))
	copy(out, p.visited)
	return out
}

func (p *Page) UserAgent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userAgent
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.SetURL(url)

	p.mu.Lock()
	p.visited = append(p.visited, url)
	hook := p.onNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (p *Page) Frames(ctx context.Context) ([]browser.Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]browser.Surface, len(p.frames))
	for i, f := range p.frames {
		out[i] = f
	}
	return out, ctx.Err()
}

func (p *Page) WaitForNavigation(ctx context.Context, action func(ctx context.Context) error) error {
	p.mu.Lock()
	p.navigations++
	p.mu.Unlock()
	return action(ctx)
}

func (p *Page) SetUserAgent(ctx context.Context, userAgent string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userAgent = userAgent
	return ctx.Err()
}
