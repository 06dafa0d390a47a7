package browser

import (
	"errors"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// fakePage is an in-memory Page. Selectors listed in missing fail like a
// Playwright timeout; text maps selectors to their text content.
type fakePage struct {
	mu        sync.Mutex
	url       string
	title     string
	html      string
	text      map[string]string
	missing   map[string]bool
	links     map[string]string // selector -> URL a click navigates to
	redirects map[string]string // URL -> URL Goto ends up on
	filled    map[string]string
	calls     []string
	closed    bool

	// block, when set, is waited on by every call so tests can hold a page busy
	block chan struct{}
}

func newFakePage() *fakePage {
	return &fakePage{
		url:       "about:blank",
		text:      make(map[string]string),
		missing:   make(map[string]bool),
		links:     make(map[string]string),
		redirects: make(map[string]string),
		filled:    make(map[string]string),
	}
}

func (p *fakePage) record(call string) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

func (p *fakePage) timeout(selector string) error {
	return fmt.Errorf("Timeout 30000ms exceeded waiting for locator(%q)", selector)
}

func (p *fakePage) Goto(url string, _ ...playwright.PageGotoOptions) (playwright.Response, error) {
	p.record("goto " + url)
	if p.missing[url] {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	p.mu.Lock()
	p.url = url
	if to, ok := p.redirects[url]; ok {
		p.url = to
	}
	p.mu.Unlock()
	return nil, nil
}

func (p *fakePage) Click(selector string, _ ...playwright.PageClickOptions) error {
	p.record("click " + selector)
	if p.missing[selector] {
		return p.timeout(selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if to, ok := p.links[selector]; ok {
		p.url = to
	}
	return nil
}

func (p *fakePage) Fill(selector, value string, _ ...playwright.PageFillOptions) error {
	p.record("fill " + selector)
	if p.missing[selector] {
		return p.timeout(selector)
	}
	p.mu.Lock()
	p.filled[selector] = value
	p.mu.Unlock()
	return nil
}

func (p *fakePage) WaitForSelector(selector string, _ ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error) {
	p.record("wait " + selector)
	if p.missing[selector] {
		return nil, p.timeout(selector)
	}
	return nil, nil
}

func (p *fakePage) TextContent(selector string, _ ...playwright.PageTextContentOptions) (string, error) {
	p.record("text " + selector)
	if p.missing[selector] {
		return "", p.timeout(selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.text[selector], nil
}

func (p *fakePage) Content() (string, error) {
	p.record("content")
	return p.html, nil
}

func (p *fakePage) Title() (string, error) {
	return p.title, nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) SetDefaultTimeout(float64) {}

func (p *fakePage) Close(...playwright.PageCloseOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) callLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}
