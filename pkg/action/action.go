// Package action defines the browser actions a workflow node can carry.
//
// Action is a closed set of variants: Navigate, Click, Type, Extract and Wait.
// Each variant knows how to describe itself for logs and how to validate its
// own fields; running them against a page is the job of the browser package.
package action

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAction is wrapped by every validation and decoding error.
var ErrInvalidAction = errors.New("invalid action")

// Kind names an action variant.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindClick    Kind = "click"
	KindType     Kind = "type"
	KindExtract  Kind = "extract"
	KindWait     Kind = "wait"
)

// Action is one browser interaction. The set of implementations is closed.
type Action interface {
	// Describe returns a human-readable description for logs and reports.
	Describe() string
	// Kind returns the variant name.
	Kind() Kind
	// SessionName returns the browser session the action targets, or ""
	// for the default session.
	SessionName() string
	// Validate checks that required fields are present and well formed.
	Validate() error

	isAction()
}

var (
	validWaitUntil = map[string]bool{
		"load":             true,
		"domcontentloaded": true,
		"networkidle":      true,
		"commit":           true,
	}
	validStates = map[string]bool{
		"attached": true,
		"detached": true,
		"visible":  true,
		"hidden":   true,
	}
)

func invalid(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidAction, kind, fmt.Sprintf(format, args...))
}

// Navigate loads a URL and optionally waits for a selector to be attached.
type Navigate struct {
	URL             string
	WaitForSelector string
	// WaitUntil is the load state that completes navigation: load (default),
	// domcontentloaded, networkidle or commit.
	WaitUntil   string
	Session     string
	Description string
}

func (a Navigate) Describe() string {
	if a.Description != "" {
		return a.Description
	}
	return "Navigate to " + a.URL
}

func (a Navigate) Kind() Kind          { return KindNavigate }
func (a Navigate) SessionName() string { return a.Session }

func (a Navigate) Validate() error {
	if a.URL == "" {
		return invalid(KindNavigate, "url is required")
	}
	if a.WaitUntil != "" && !validWaitUntil[a.WaitUntil] {
		return invalid(KindNavigate, "invalid wait_until %q (must be load, domcontentloaded, networkidle or commit)", a.WaitUntil)
	}
	return nil
}

// Click clicks the first element matching Selector.
type Click struct {
	Selector    string
	Session     string
	Description string
}

func (a Click) Describe() string {
	if a.Description != "" {
		return a.Description
	}
	return "Click element with selector " + a.Selector
}

func (a Click) Kind() Kind          { return KindClick }
func (a Click) SessionName() string { return a.Session }

func (a Click) Validate() error {
	if a.Selector == "" {
		return invalid(KindClick, "selector is required")
	}
	return nil
}

// Type fills the first input matching Selector with Text.
type Type struct {
	Selector    string
	Text        string
	Session     string
	Description string
}

func (a Type) Describe() string {
	if a.Description != "" {
		return a.Description
	}
	return fmt.Sprintf("Type '%s' into element with selector %s", a.Text, a.Selector)
}

func (a Type) Kind() Kind          { return KindType }
func (a Type) SessionName() string { return a.Session }

func (a Type) Validate() error {
	if a.Selector == "" {
		return invalid(KindType, "selector is required")
	}
	return nil
}

// Extract reads the trimmed text of the first element matching Selector, or
// the visible text of the whole page when Selector is empty.
type Extract struct {
	Selector string
	// MaxLength truncates the result; zero uses the executor default.
	MaxLength   int
	Session     string
	Description string
}

func (a Extract) Describe() string {
	if a.Description != "" {
		return a.Description
	}
	if a.Selector == "" {
		return "Extract page text"
	}
	return "Extract text from selector " + a.Selector
}

func (a Extract) Kind() Kind          { return KindExtract }
func (a Extract) SessionName() string { return a.Session }

func (a Extract) Validate() error {
	if a.MaxLength < 0 {
		return invalid(KindExtract, "max_length must not be negative")
	}
	return nil
}

// Wait blocks until the element matching Selector reaches State
// (attached, detached, visible or hidden; visible by default).
type Wait struct {
	Selector    string
	State       string
	Timeout     time.Duration
	Session     string
	Description string
}

func (a Wait) Describe() string {
	if a.Description != "" {
		return a.Description
	}
	state := a.State
	if state == "" {
		state = "visible"
	}
	return fmt.Sprintf("Wait for selector %s to be %s", a.Selector, state)
}

func (a Wait) Kind() Kind          { return KindWait }
func (a Wait) SessionName() string { return a.Session }

func (a Wait) Validate() error {
	if a.Selector == "" {
		return invalid(KindWait, "selector is required")
	}
	if a.State != "" && !validStates[a.State] {
		return invalid(KindWait, "invalid state %q (must be attached, detached, visible or hidden)", a.State)
	}
	if a.Timeout < 0 {
		return invalid(KindWait, "timeout must not be negative")
	}
	return nil
}

func (Navigate) isAction() {}
func (Click) isAction()    {}
func (Type) isAction()     {}
func (Extract) isAction()  {}
func (Wait) isAction()     {}
