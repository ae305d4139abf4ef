package marketplace

import (
	"context"
	"time"
)

// Element is one DOM node on the listing page. Accessors return zero values
// when the underlying node has gone stale; the heuristics in this package
// treat those as non-matches rather than errors.
type Element interface {
	Visible() bool
	Text() string
	Attr(name string) string
	Value() (string, error)
	TagName() string
	Checked() bool

	Click() error
	Fill(value string) error
	Type(text string) error
	Press(key string) error
	ScrollIntoView() error
	SetFiles(paths []string) error

	// Parent returns the parent element, or nil at the document root.
	Parent() Element
	// Find returns the first descendant matching selector, or nil.
	Find(selector string) Element
}

// Page is the single interaction surface of a browser session. The real
// implementation wraps a playwright page; tests drive the state machine
// against an in-memory fake.
type Page interface {
	URL() string
	Content() (string, error)
	QueryAll(selector string) ([]Element, error)
	// WaitFor polls for selector and returns nil when it never appears
	// within timeout. Hidden elements still match; visibility is checked
	// by the caller where it matters.
	WaitFor(selector string, timeout time.Duration) Element
}

// Navigator re-points the page at a URL and waits for quiescence. The
// browser session implements it.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}
