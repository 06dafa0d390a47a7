package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

// Page is the subset of playwright.Page that sessions drive.
type Page interface {
	Goto(url string, options ...playwright.PageGotoOptions) (playwright.Response, error)
	Click(selector string, options ...playwright.PageClickOptions) error
	Fill(selector, value string, options ...playwright.PageFillOptions) error
	WaitForSelector(selector string, options ...playwright.PageWaitForSelectorOptions) (playwright.ElementHandle, error)
	TextContent(selector string, options ...playwright.PageTextContentOptions) (string, error)
	Content() (string, error)
	Title() (string, error)
	URL() string
	SetDefaultTimeout(timeout float64)
	Close(options ...playwright.PageCloseOptions) error
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Browser selects the engine: chromium (default), firefox or webkit
	Browser string

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for page operations
	Timeout time.Duration
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle", "commit"
	WaitUntil string

	// WaitForSelector is awaited (attached) after the page loads
	WaitForSelector string

	Timeout time.Duration
}

// ExtractOptions configures text extraction.
type ExtractOptions struct {
	// Selector limits extraction to the first matching element; empty means
	// the visible text of the whole page
	Selector string

	// MaxLength limits the extracted content length (characters)
	MaxLength int

	Timeout time.Duration
}

// WaitOptions configures waiting behavior.
type WaitOptions struct {
	Selector string

	// State to wait for: "attached", "detached", "visible", "hidden"
	State string

	Timeout time.Duration
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	Name       string
	CurrentURL string
	Headless   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// Default values for various operations
const (
	DefaultSessionName    = "default"
	DefaultBrowser        = "chromium"
	DefaultTimeout        = 30 * time.Second
	DefaultMaxLength      = 10000 // characters
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultMaxSessions    = 5
)

// milliseconds converts d to the float milliseconds Playwright expects.
// It returns nil for a zero duration so the page default applies.
func milliseconds(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	ms := float64(d) / float64(time.Millisecond)
	return &ms
}
