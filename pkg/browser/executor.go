package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/bitagent/pkg/action"
	"github.com/entrhq/bitagent/pkg/security/navigation"
	"github.com/entrhq/bitagent/pkg/workflow"
)

// ActionError reports a failed browser interaction together with the page
// URL and selector involved.
type ActionError struct {
	Action   string // description of the action
	URL      string
	Selector string
	Err      error
}

func (e *ActionError) Error() string {
	var details []string
	if e.URL != "" {
		details = append(details, "URL: "+e.URL)
	}
	if e.Selector != "" {
		details = append(details, "Selector: "+e.Selector)
	}

	msg := fmt.Sprintf("browser interaction failed: %s: %v", e.Action, e.Err)
	if len(details) > 0 {
		msg += " (" + strings.Join(details, ", ") + ")"
	}
	return msg
}

func (e *ActionError) Unwrap() error { return e.Err }

// SessionProvider resolves session names. *SessionManager implements it.
type SessionProvider interface {
	GetSession(name string) (*Session, error)
}

// ActionExecutor runs action.Action payloads against browser sessions. It
// implements workflow.Executor.
type ActionExecutor struct {
	sessions       SessionProvider
	defaultSession string
	policy         *navigation.Policy
	maxLength      int
	timeout        time.Duration
}

var _ workflow.Executor = (*ActionExecutor)(nil)

// ExecutorOption configures an ActionExecutor.
type ExecutorOption func(*ActionExecutor)

// WithDefaultSession names the session used by actions that do not set one.
func WithDefaultSession(name string) ExecutorOption {
	return func(e *ActionExecutor) {
		if name != "" {
			e.defaultSession = name
		}
	}
}

// WithPolicy checks every navigation against p.
func WithPolicy(p *navigation.Policy) ExecutorOption {
	return func(e *ActionExecutor) {
		e.policy = p
	}
}

// WithMaxLength sets the extraction limit for Extract actions without one.
func WithMaxLength(n int) ExecutorOption {
	return func(e *ActionExecutor) {
		if n > 0 {
			e.maxLength = n
		}
	}
}

// WithActionTimeout overrides the page default timeout for every action.
func WithActionTimeout(d time.Duration) ExecutorOption {
	return func(e *ActionExecutor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewActionExecutor creates an executor that resolves sessions through sessions.
func NewActionExecutor(sessions SessionProvider, opts ...ExecutorOption) *ActionExecutor {
	e := &ActionExecutor{
		sessions:       sessions,
		defaultSession: DefaultSessionName,
		maxLength:      DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one action. The session is held for the whole action, so
// actions on the same session never interleave.
func (e *ActionExecutor) Execute(ctx context.Context, payload workflow.Payload) (interface{}, error) {
	a, ok := payload.(action.Action)
	if !ok {
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
	if err := a.Validate(); err != nil {
		return nil, &ActionError{Action: a.Describe(), Err: err}
	}

	name := a.SessionName()
	if name == "" {
		name = e.defaultSession
	}
	session, err := e.sessions.GetSession(name)
	if err != nil {
		return nil, &ActionError{Action: a.Describe(), Err: err}
	}

	if err := session.Acquire(ctx); err != nil {
		return nil, err
	}
	defer session.Release()

	// Cancelled while waiting for the page
	if err := context.Cause(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	debugLog.Debugf("session %q: %s", name, a.Describe())

	result, err := e.run(ctx, session, a)
	if err != nil {
		debugLog.Warnf("session %q: %s failed after %v: %v", name, a.Describe(), time.Since(start), err)
		return nil, err
	}

	debugLog.Debugf("session %q: %s done in %v", name, a.Describe(), time.Since(start))
	return result, nil
}

// boundTimeout caps a Playwright timeout at the time left before ctx's
// deadline. Playwright calls do not observe ctx, so this is how a workflow
// timeout reaches an action already talking to the page.
func boundTimeout(ctx context.Context, d time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return d
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	if d <= 0 || remaining < d {
		return remaining
	}
	return d
}

func (e *ActionExecutor) run(ctx context.Context, session *Session, a action.Action) (interface{}, error) {
	timeout := boundTimeout(ctx, e.timeout)
	fail := func(selector string, err error) error {
		return &ActionError{Action: a.Describe(), URL: session.CurrentURL(), Selector: selector, Err: err}
	}

	switch v := a.(type) {
	case action.Navigate:
		if err := e.policy.Check(v.URL); err != nil {
			return nil, &ActionError{Action: a.Describe(), URL: v.URL, Err: err}
		}
		url, err := session.Navigate(v.URL, NavigateOptions{
			WaitUntil:       v.WaitUntil,
			WaitForSelector: v.WaitForSelector,
			Timeout:         timeout,
		})
		if err != nil {
			return nil, &ActionError{Action: a.Describe(), URL: v.URL, Selector: v.WaitForSelector, Err: err}
		}
		// Redirects may land outside the allowed set of sites.
		if err := e.policy.Check(url); err != nil {
			return nil, &ActionError{Action: a.Describe(), URL: url, Err: err}
		}
		return url, nil

	case action.Click:
		url, err := session.Click(v.Selector, timeout)
		if err != nil {
			return nil, fail(v.Selector, err)
		}
		// A click may follow a link off the allowed set of sites.
		if err := e.policy.Check(url); err != nil {
			return nil, fail(v.Selector, err)
		}
		return url, nil

	case action.Type:
		if err := session.Fill(v.Selector, v.Text, timeout); err != nil {
			return nil, fail(v.Selector, err)
		}
		return nil, nil

	case action.Extract:
		maxLength := v.MaxLength
		if maxLength == 0 {
			maxLength = e.maxLength
		}
		text, err := session.ExtractText(ExtractOptions{
			Selector:  v.Selector,
			MaxLength: maxLength,
			Timeout:   timeout,
		})
		if err != nil {
			return nil, fail(v.Selector, err)
		}
		return text, nil

	case action.Wait:
		wait := timeout
		if v.Timeout > 0 {
			wait = boundTimeout(ctx, v.Timeout)
		}
		if err := session.Wait(WaitOptions{Selector: v.Selector, State: v.State, Timeout: wait}); err != nil {
			return nil, fail(v.Selector, err)
		}
		return nil, nil

	default:
		return nil, fail("", errors.New("unsupported action"))
	}
}
