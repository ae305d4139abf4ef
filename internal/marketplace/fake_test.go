package marketplace

import (
	"context"
	"sync"
	"time"

	"marketplace/autoposter/internal/humanize"
)

// fakeElement is an in-memory DOM node for driving the form heuristics.
type fakeElement struct {
	visible bool
	text    string
	tag     string
	checked bool
	attrs   map[string]string
	value   string

	parent   *fakeElement
	children map[string]*fakeElement

	clicks  int
	presses []string
	files   []string

	clickErr error
	fillErr  error
}

func (f *fakeElement) Visible() bool   { return f.visible }
func (f *fakeElement) Text() string    { return f.text }
func (f *fakeElement) TagName() string { return f.tag }
func (f *fakeElement) Checked() bool   { return f.checked }

func (f *fakeElement) Attr(name string) string {
	return f.attrs[name]
}

func (f *fakeElement) Value() (string, error) { return f.value, nil }

func (f *fakeElement) Click() error {
	if f.clickErr != nil {
		return f.clickErr
	}
	f.clicks++
	return nil
}

func (f *fakeElement) Fill(value string) error {
	if f.fillErr != nil {
		return f.fillErr
	}
	f.value = value
	return nil
}

func (f *fakeElement) Type(text string) error {
	f.value += text
	return nil
}

func (f *fakeElement) Press(key string) error {
	f.presses = append(f.presses, key)
	return nil
}

func (f *fakeElement) ScrollIntoView() error { return nil }

func (f *fakeElement) SetFiles(paths []string) error {
	f.files = append([]string{}, paths...)
	return nil
}

func (f *fakeElement) Parent() Element {
	if f.parent == nil {
		return nil
	}
	return f.parent
}

func (f *fakeElement) Find(selector string) Element {
	if child, ok := f.children[selector]; ok {
		return child
	}
	return nil
}

// fakePage serves canned elements per selector. WaitFor ignores the timeout
// so tests never sleep waiting for something that is not there.
type fakePage struct {
	mu       sync.Mutex
	url      string
	content  string
	elements map[string][]*fakeElement
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) setURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

func (p *fakePage) Content() (string, error) { return p.content, nil }

func (p *fakePage) QueryAll(selector string) ([]Element, error) {
	els := p.elements[selector]
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, el)
	}
	return out, nil
}

func (p *fakePage) WaitFor(selector string, _ time.Duration) Element {
	els := p.elements[selector]
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

// fakeNavigator records navigations and rewrites the page URL the way a real
// load would. redirects simulates the site bouncing a URL elsewhere.
type fakeNavigator struct {
	page      *fakePage
	urls      []string
	err       error
	redirects map[string]string
}

func (n *fakeNavigator) Navigate(_ context.Context, url string) error {
	n.urls = append(n.urls, url)
	if n.err != nil {
		return n.err
	}
	if target, ok := n.redirects[url]; ok {
		n.page.setURL(target)
	} else {
		n.page.setURL(url)
	}
	return nil
}

// instantPacer removes all pacing so the flow tests run in microseconds.
// Text lands in one Type call; the per-character cadence is humanize's
// concern, covered by its own tests.
type instantPacer struct{}

var _ humanize.Pacer = instantPacer{}

func (instantPacer) Delay(ctx context.Context, _, _ time.Duration) error {
	return ctx.Err()
}

func (instantPacer) TypeText(ctx context.Context, target humanize.TypeTarget, text string, _, _ time.Duration) error {
	if err := target.Click(); err != nil {
		return err
	}
	if err := target.Type(text); err != nil {
		return err
	}
	return ctx.Err()
}
