package browser

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/bitagent/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("browser")
	if err != nil {
		// Logger fell back to stderr due to initialization failure
		debugLog.Warnf("Failed to initialize browser logger, using stderr fallback: %v", err)
	}
}

// ErrSessionNotFound is returned when no session has the requested name.
var ErrSessionNotFound = errors.New("browser session not found")

// SessionManager owns the Playwright driver and all open sessions.
type SessionManager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	playwright  *playwright.Playwright
	maxSessions int
	initialized bool
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
	}
}

// Initialize installs (if needed) and starts the Playwright driver.
// This must be called before StartSession.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Keep driver output off the console
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	debugLog.Infof("playwright driver started")
	return nil
}

// StartSession launches a browser and opens a page under name.
func (m *SessionManager) StartSession(name string, opts SessionOptions) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNewLocked(name); err != nil {
		return nil, err
	}
	if !m.initialized {
		return nil, fmt.Errorf("session manager not initialized")
	}

	if opts.Viewport == nil {
		opts.Viewport = &Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	browserType, err := m.browserType(opts.Browser)
	if err != nil {
		return nil, err
	}

	browser, err := browserType.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(*milliseconds(opts.Timeout))

	session := NewSession(name, page)
	session.Browser = browser
	session.Context = context
	session.Headless = opts.Headless

	m.sessions[name] = session
	debugLog.Infof("started session %q (%s, headless=%v)", name, browserType.Name(), opts.Headless)
	return session, nil
}

func (m *SessionManager) browserType(name string) (playwright.BrowserType, error) {
	switch name {
	case "", DefaultBrowser:
		return m.playwright.Chromium, nil
	case "firefox":
		return m.playwright.Firefox, nil
	case "webkit":
		return m.playwright.WebKit, nil
	default:
		return nil, fmt.Errorf("unsupported browser %q (must be chromium, firefox or webkit)", name)
	}
}

// AddSession registers a session that was opened elsewhere.
func (m *SessionManager) AddSession(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkNewLocked(session.Name); err != nil {
		return err
	}
	m.sessions[session.Name] = session
	return nil
}

func (m *SessionManager) checkNewLocked(name string) error {
	if name == "" {
		return fmt.Errorf("session name is required")
	}
	if _, exists := m.sessions[name]; exists {
		return fmt.Errorf("session %q already exists", name)
	}
	if len(m.sessions) >= m.maxSessions {
		return fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}
	return nil
}

// CloseSession closes and removes a browser session.
func (m *SessionManager) CloseSession(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}

	delete(m.sessions, name)
	if err := session.close(); err != nil {
		debugLog.Warnf("closing session %q: %v", name, err)
	}
	return nil
}

// GetSession retrieves an open session by name.
func (m *SessionManager) GetSession(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	return session, nil
}

// ListSessions returns information about all open sessions, sorted by name.
func (m *SessionManager) ListSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, session := range m.sessions {
		infos = append(infos, session.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// HasSessions returns true if there are any open sessions.
func (m *SessionManager) HasSessions() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) > 0
}

// CloseAll closes every open session.
func (m *SessionManager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeAllLocked()
}

func (m *SessionManager) closeAllLocked() error {
	var errs []error
	for name, session := range m.sessions {
		if err := session.close(); err != nil {
			errs = append(errs, fmt.Errorf("session %q: %w", name, err))
		}
		delete(m.sessions, name)
	}
	return errors.Join(errs...)
}

// Shutdown closes all sessions and stops Playwright.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	closeErr := m.closeAllLocked()
	if closeErr != nil {
		debugLog.Warnf("errors closing sessions: %v", closeErr)
	}

	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
		debugLog.Infof("playwright driver stopped")
	}

	return closeErr
}

// SetMaxSessions sets the maximum number of concurrent sessions.
func (m *SessionManager) SetMaxSessions(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxSessions = max
	}
}
