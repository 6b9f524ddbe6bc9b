package marketsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Browser is the headless-browser capability the acquisition strategies
// depend on. The orchestration logic only ever talks to this interface, so
// tests substitute a fake instead of spawning Chromium.
type Browser interface {
	// Open navigates to url and starts capturing response bodies whose URL
	// contains any of the given hints.
	Open(ctx context.Context, url string, captureHints []string) (Page, error)
	Close() error
}

// Page is one live browser tab.
type Page interface {
	// Height reports the current document scroll height.
	Height() (int, error)
	// ScrollBottom scrolls to the document end to trigger lazy loading.
	ScrollBottom() error
	// HTML returns the rendered document markup.
	HTML() (string, error)
	// Captured drains the response bodies collected so far.
	Captured() [][]byte
	Close() error
}

// BrowserFactory builds a browser session per acquisition run. Sessions are
// never reused across runs.
type BrowserFactory func() (Browser, error)

type rodBrowser struct {
	browser *rod.Browser
	cleanup func()
}

// NewRodBrowser launches a headless Chromium via go-rod. bin may be empty to
// let the launcher resolve a browser itself.
func NewRodBrowser(bin string, headless bool) (Browser, error) {
	l := launcher.New().Headless(headless).NoSandbox(true).Leakless(false)
	if bin != "" {
		l = l.Bin(bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return &rodBrowser{browser: browser, cleanup: l.Cleanup}, nil
}

func (b *rodBrowser) Open(ctx context.Context, url string, captureHints []string) (Page, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	page = page.Context(ctx)
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: browserUserAgent}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set user agent: %w", err)
	}

	rp := &rodPage{page: page}
	// EachEvent returns a blocking pump; it runs until the page context ends.
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) {
		respURL := e.Response.URL
		if !containsAny(respURL, captureHints) {
			return
		}
		// Body fetch must happen while the response is still buffered.
		body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
		if err != nil || body.Body == "" {
			return
		}
		rp.mu.Lock()
		rp.captured = append(rp.captured, []byte(body.Body))
		rp.mu.Unlock()
	})
	go wait()

	if err := page.Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	_ = page.WaitDOMStable(time.Second, 0.1)
	return rp, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	if b.cleanup != nil {
		b.cleanup()
	}
	return err
}

type rodPage struct {
	page *rod.Page

	mu       sync.Mutex
	captured [][]byte
}

func (p *rodPage) Height() (int, error) {
	res, err := p.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *rodPage) ScrollBottom() error {
	_, err := p.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *rodPage) HTML() (string, error) {
	html, err := p.page.HTML()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(html), nil
}

func (p *rodPage) Captured() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.captured
	p.captured = nil
	return out
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
