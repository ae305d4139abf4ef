package marketplace

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Selectors used against the listing form. The target page exposes no
// stable identifiers, so these are structural/attribute patterns and most
// lookups are positional or text-driven on top of them.
const (
	selFileInput     = `input[type="file"][accept*="image"]`
	selTextInput     = `input[type="text"]`
	selTextarea      = `textarea`
	selCategoryInput = `input[aria-label*="Category" i]`
	selCombobox      = `input[role="combobox"]`
	selOptionList    = `div[role="option"], li[role="option"], [role="listbox"] div, div[role="menuitem"]`
	selTextish       = `div, label, span`
	selOptionish     = `div, span, li, [role="option"]`
	selCheckbox      = `input[type="checkbox"]`
	selSwitch        = `input[role="switch"], input[type="checkbox"][aria-checked]`
	selSpan          = `span`
	selLocationPH    = `input[placeholder*="location" i]`
	selLocationAria  = `input[aria-label*="location" i]`
)

// Interstitial dismissal patterns, tried in order. Absence of any pattern
// is normal.
var popupDismissSelectors = []string{
	`div[aria-label="Not now" i]`,
	`button:has-text("Not now")`,
	`[role="button"]:has-text("Not now")`,
	`button:has-text("Accept all")`,
	`button:has-text("Block")`,
	`[aria-label*="Close" i]`,
	`[data-testid="close"]`,
}

// Matcher is one independent element-location strategy. Find returns nil
// when the strategy does not apply to the current page.
type Matcher struct {
	Name string
	Find func(p Page) Element
}

// firstMatch composes matchers with first-success-wins semantics and
// reports which strategy won.
func firstMatch(p Page, matchers ...Matcher) (Element, string) {
	for _, m := range matchers {
		if el := m.Find(p); el != nil {
			log.Debugf("locator strategy %q matched", m.Name)
			return el, m.Name
		}
	}
	return nil, ""
}

// visibleTextInputs returns the visible single-line text inputs, excluding
// the page's search boxes. Field identity on the form is positional: the
// first is the title, the second the price.
func visibleTextInputs(p Page) []Element {
	els, err := p.QueryAll(selTextInput)
	if err != nil {
		log.Debugf("query %q failed: %v", selTextInput, err)
		return nil
	}
	inputs := make([]Element, 0, len(els))
	for _, el := range els {
		if !el.Visible() {
			continue
		}
		aria := strings.ToLower(el.Attr("aria-label"))
		placeholder := strings.ToLower(el.Attr("placeholder"))
		if strings.Contains(aria, "search") || strings.Contains(placeholder, "search") {
			continue
		}
		inputs = append(inputs, el)
	}
	return inputs
}

// firstVisible returns the first visible element matching selector.
func firstVisible(p Page, selector string) Element {
	els, err := p.QueryAll(selector)
	if err != nil {
		return nil
	}
	for _, el := range els {
		if el.Visible() {
			return el
		}
	}
	return nil
}

// clickableAncestor climbs at most maxHops parents looking for one that
// satisfies pred, starting with the element itself.
func clickableAncestor(el Element, maxHops int, pred func(Element) bool) Element {
	cur := el
	for hops := 0; cur != nil && hops <= maxHops; hops++ {
		if pred(cur) {
			return cur
		}
		cur = cur.Parent()
	}
	return nil
}

func isButton(el Element) bool {
	return el.TagName() == "button" || el.Attr("role") == "button"
}

// ancestorTextContains climbs at most maxHops parents checking whether any
// enclosing text contains needle (case-insensitive).
func ancestorTextContains(el Element, maxHops int, needle string) bool {
	needle = strings.ToLower(needle)
	cur := el
	for hops := 0; cur != nil && hops <= maxHops; hops++ {
		if strings.Contains(strings.ToLower(cur.Text()), needle) {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
