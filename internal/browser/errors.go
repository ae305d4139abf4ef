package browser

import "fmt"

// SessionStartError reports a failed browser launch. Locked distinguishes a
// profile held by another process from other launch failures so the caller
// can tell the operator to close other instances.
type SessionStartError struct {
	Locked bool
	Err    error
}

func (e *SessionStartError) Error() string {
	if e.Locked {
		return fmt.Sprintf("browser profile is locked by another process, close all other browser windows and retry: %v", e.Err)
	}
	return fmt.Sprintf("failed to start browser session: %v", e.Err)
}

func (e *SessionStartError) Unwrap() error { return e.Err }

// NavigationError reports a navigation that did not reach quiescence within
// the timeout budget.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %s failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }
