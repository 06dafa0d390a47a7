package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/playwright-community/playwright-go"
)

// Session represents an open browser page with its associated resources.
//
// Page operations are not safe to interleave. Callers hold the session with
// Acquire for the duration of one action and Release it afterwards.
type Session struct {
	// Name is the unique identifier for this session
	Name string

	// Browser and Context are nil for sessions built around a bare Page
	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    Page

	Headless  bool
	CreatedAt time.Time

	busy chan struct{}

	mu         sync.Mutex // guards the fields below
	lastUsedAt time.Time
	currentURL string
}

// NewSession wraps an existing page in a session.
func NewSession(name string, page Page) *Session {
	now := time.Now()
	return &Session{
		Name:       name,
		Page:       page,
		CreatedAt:  now,
		busy:       make(chan struct{}, 1),
		lastUsedAt: now,
		currentURL: "about:blank",
	}
}

// Acquire waits until the session is free or ctx is done.
func (s *Session) Acquire(ctx context.Context) error {
	select {
	case s.busy <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for session %q: %w", s.Name, context.Cause(ctx))
	}
}

// Release frees a session taken with Acquire.
func (s *Session) Release() {
	<-s.busy
}

// CurrentURL returns the URL of the page after the last operation.
func (s *Session) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// LastUsedAt returns when the session last ran an operation.
func (s *Session) LastUsedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsedAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) syncURL() string {
	u := s.Page.URL()
	s.mu.Lock()
	s.currentURL = u
	s.mu.Unlock()
	return u
}

// Info returns a metadata snapshot of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		Name:       s.Name,
		CurrentURL: s.currentURL,
		Headless:   s.Headless,
		CreatedAt:  s.CreatedAt,
		LastUsedAt: s.lastUsedAt,
	}
}

// Navigate loads url, then waits for opts.WaitForSelector to be attached if
// set. It returns the page URL after navigation.
func (s *Session) Navigate(url string, opts NavigateOptions) (string, error) {
	s.touch()

	waitUntil := opts.WaitUntil
	if waitUntil == "" {
		waitUntil = "load"
	}
	state := playwright.WaitUntilState(waitUntil)
	gotoOpts := playwright.PageGotoOptions{
		WaitUntil: &state,
		Timeout:   milliseconds(opts.Timeout),
	}

	if _, err := s.Page.Goto(url, gotoOpts); err != nil {
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	if opts.WaitForSelector != "" {
		attached := playwright.WaitForSelectorState("attached")
		_, err := s.Page.WaitForSelector(opts.WaitForSelector, playwright.PageWaitForSelectorOptions{
			State:   &attached,
			Timeout: milliseconds(opts.Timeout),
		})
		if err != nil {
			return "", fmt.Errorf("waiting for selector %s failed: %w", opts.WaitForSelector, err)
		}
	}

	return s.syncURL(), nil
}

// Click clicks the first element matching selector and returns the page URL
// afterwards, which differs from before when the click navigated.
func (s *Session) Click(selector string, timeout time.Duration) (string, error) {
	s.touch()

	err := s.Page.Click(selector, playwright.PageClickOptions{Timeout: milliseconds(timeout)})
	if err != nil {
		return "", fmt.Errorf("click failed: %w", err)
	}
	return s.syncURL(), nil
}

// Fill replaces the value of the first input matching selector.
func (s *Session) Fill(selector, value string, timeout time.Duration) error {
	s.touch()

	err := s.Page.Fill(selector, value, playwright.PageFillOptions{Timeout: milliseconds(timeout)})
	if err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// Wait waits for an element to reach a state.
func (s *Session) Wait(opts WaitOptions) error {
	s.touch()

	if opts.Selector == "" {
		return fmt.Errorf("selector is required for wait")
	}

	waitOpts := playwright.PageWaitForSelectorOptions{Timeout: milliseconds(opts.Timeout)}
	if opts.State != "" {
		state := playwright.WaitForSelectorState(opts.State)
		waitOpts.State = &state
	}

	if _, err := s.Page.WaitForSelector(opts.Selector, waitOpts); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

// ExtractText returns the trimmed text content of the first element matching
// opts.Selector, or the visible text of the whole page when no selector is set.
func (s *Session) ExtractText(opts ExtractOptions) (string, error) {
	s.touch()

	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}

	if opts.Selector != "" {
		text, err := s.Page.TextContent(opts.Selector, playwright.PageTextContentOptions{Timeout: milliseconds(opts.Timeout)})
		if err != nil {
			return "", fmt.Errorf("text extraction failed: %w", err)
		}
		return truncate(strings.TrimSpace(text), opts.MaxLength), nil
	}

	raw, err := s.Page.Content()
	if err != nil {
		return "", fmt.Errorf("page content failed: %w", err)
	}
	page, err := extractPageText(raw, opts.MaxLength)
	if err != nil {
		return "", err
	}
	return page.Text, nil
}

// Title returns the page title, or "" if it cannot be read.
func (s *Session) Title() string {
	title, err := s.Page.Title()
	if err != nil {
		return ""
	}
	return title
}

// close releases the page, context and browser, returning the first error.
func (s *Session) close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if s.Page != nil {
		keep(s.Page.Close())
	}
	if s.Context != nil {
		keep(s.Context.Close())
	}
	if s.Browser != nil {
		keep(s.Browser.Close())
	}
	return first
}

// truncate cuts s to at most limit characters without splitting a rune.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
