package marketplace

import (
	"time"

	pw "github.com/playwright-community/playwright-go"
	log "github.com/sirupsen/logrus"
)

// pwPage adapts a playwright page to the Page interface the state machine
// is written against.
type pwPage struct {
	page pw.Page
}

// NewPlaywrightPage wraps the browser session's active page.
func NewPlaywrightPage(page pw.Page) Page {
	return &pwPage{page: page}
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Content() (string, error) {
	return p.page.Content()
}

func (p *pwPage) QueryAll(selector string) ([]Element, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	els := make([]Element, 0, len(handles))
	for _, h := range handles {
		els = append(els, &pwElement{handle: h})
	}
	return els, nil
}

func (p *pwPage) WaitFor(selector string, timeout time.Duration) Element {
	handle, err := p.page.WaitForSelector(selector, pw.PageWaitForSelectorOptions{
		State:   pw.WaitForSelectorStateAttached,
		Timeout: pw.Float(float64(timeout.Milliseconds())),
	})
	if err != nil || handle == nil {
		return nil
	}
	return &pwElement{handle: handle}
}

// pwElement adapts a playwright element handle. Read accessors swallow
// stale-element errors and return zero values so heuristic scans simply
// skip nodes that vanished mid-walk.
type pwElement struct {
	handle pw.ElementHandle
}

func (e *pwElement) Visible() bool {
	v, err := e.handle.IsVisible()
	if err != nil {
		return false
	}
	return v
}

func (e *pwElement) Text() string {
	t, err := e.handle.TextContent()
	if err != nil {
		return ""
	}
	return t
}

func (e *pwElement) Attr(name string) string {
	v, err := e.handle.GetAttribute(name)
	if err != nil {
		return ""
	}
	return v
}

func (e *pwElement) Value() (string, error) {
	return e.handle.InputValue()
}

func (e *pwElement) TagName() string {
	res, err := e.handle.Evaluate("el => el.tagName.toLowerCase()")
	if err != nil {
		return ""
	}
	tag, ok := res.(string)
	if !ok {
		return ""
	}
	return tag
}

func (e *pwElement) Checked() bool {
	v, err := e.handle.IsChecked()
	if err != nil {
		return false
	}
	return v
}

func (e *pwElement) Click() error {
	return e.handle.Click()
}

func (e *pwElement) Fill(value string) error {
	return e.handle.Fill(value)
}

func (e *pwElement) Type(text string) error {
	return e.handle.Type(text)
}

func (e *pwElement) Press(key string) error {
	return e.handle.Press(key)
}

func (e *pwElement) ScrollIntoView() error {
	return e.handle.ScrollIntoViewIfNeeded()
}

func (e *pwElement) SetFiles(paths []string) error {
	return e.handle.SetInputFiles(paths)
}

func (e *pwElement) Parent() Element {
	parent, err := e.handle.QuerySelector("xpath=..")
	if err != nil || parent == nil {
		if err != nil {
			log.Debugf("parent lookup failed: %v", err)
		}
		return nil
	}
	return &pwElement{handle: parent}
}

func (e *pwElement) Find(selector string) Element {
	child, err := e.handle.QuerySelector(selector)
	if err != nil || child == nil {
		return nil
	}
	return &pwElement{handle: child}
}
