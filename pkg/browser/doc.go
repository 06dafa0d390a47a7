// Package browser runs workflow actions against live browser pages through
// Playwright.
//
// # Architecture
//
// The package is built around three concepts:
//
// 1. Session: a named Playwright browser, context and page
// 2. SessionManager: owns the Playwright driver and every open session
// 3. ActionExecutor: the workflow.Executor that runs action.Action payloads
//
// # Session Serialisation
//
// A page is a single stateful target: two actions racing on the same page
// would interleave navigation and input. ActionExecutor therefore holds a
// session for the whole duration of one action, so actions on one session run
// one at a time while actions on different sessions run concurrently, up to
// the workflow's concurrency limit. Waiting for a busy session honours context
// cancellation.
//
// # Security
//
// Every Navigate is checked against a navigation.Policy before the browser is
// asked to load the URL. Blocked URLs fail the node with a *PolicyViolation
// wrapped in an *ActionError.
//
// # Example Usage
//
//	manager := browser.NewSessionManager()
//	if err := manager.Initialize(); err != nil {
//	    return err
//	}
//	defer manager.Shutdown()
//
//	if _, err := manager.StartSession(browser.DefaultSessionName, browser.SessionOptions{Headless: true}); err != nil {
//	    return err
//	}
//
//	exec := browser.NewActionExecutor(manager, browser.WithPolicy(policy))
//	err := engine.Execute(ctx, "checkout", exec, 4)
package browser
