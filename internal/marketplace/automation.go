// Package marketplace drives the multi-page listing-creation flow of the
// target site. The form exposes no stable element identifiers, so every
// lookup is an ordered list of positional, attribute, and text strategies;
// cosmetic fields degrade to warnings while mandatory steps fail the
// submission with typed errors.
package marketplace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"marketplace/autoposter/internal/domain"
	"marketplace/autoposter/internal/humanize"
)

const (
	nextLabel    = "Next"
	publishLabel = "Publish"
)

// Config tunes the automation for one deployment.
type Config struct {
	// CreateURL is the listing-creation entry point. Every submission
	// starts and ends (recovery) here.
	CreateURL string
	// LoginWait bounds how long the run waits for the operator to finish
	// a manual login; LoginPoll is the URL re-check interval.
	LoginWait time.Duration
	LoginPoll time.Duration
	// TypeCharMin/Max bound the per-character typing delay.
	TypeCharMin time.Duration
	TypeCharMax time.Duration
	// PaceScale multiplies every inter-step delay. Production keeps 1.0;
	// it exists so tests do not sleep through the full human pacing.
	PaceScale float64
	// AutoJoinFirstGroup restores the legacy behavior of ticking the
	// first available group when the payload names none. Off by default:
	// silently joining an arbitrary group is rarely what anyone wants.
	AutoJoinFirstGroup bool
}

// DefaultConfig matches the pacing the flow was tuned against.
func DefaultConfig(createURL string) Config {
	return Config{
		CreateURL:   createURL,
		LoginWait:   5 * time.Minute,
		LoginPoll:   time.Second,
		TypeCharMin: 50 * time.Millisecond,
		TypeCharMax: 150 * time.Millisecond,
		PaceScale:   1.0,
	}
}

// Automation submits listings through one browser page. It is not safe for
// concurrent use; the scheduler owns it for the duration of a run.
type Automation struct {
	page  Page
	nav   Navigator
	pacer humanize.Pacer
	cfg   Config
}

// New wires an automation over an open page.
func New(page Page, nav Navigator, pacer humanize.Pacer, cfg Config) *Automation {
	return &Automation{page: page, nav: nav, pacer: pacer, cfg: cfg}
}

// Initialize navigates to the creation form and, when the site bounces to a
// login or checkpoint page, suspends until the operator finishes logging in
// or the wait budget runs out. Called once per scheduler run.
func (a *Automation) Initialize(ctx context.Context) error {
	if err := a.nav.Navigate(ctx, a.cfg.CreateURL); err != nil {
		return err
	}
	if err := a.pause(ctx, 3*time.Second, 5*time.Second); err != nil {
		return err
	}

	if isLoginURL(a.page.URL()) {
		log.Warn("not logged in; waiting for the operator to complete login in the browser window")
		if err := a.waitForLogin(ctx); err != nil {
			return err
		}
		log.Info("login detected, continuing")
		if err := a.nav.Navigate(ctx, a.cfg.CreateURL); err != nil {
			return err
		}
		if err := a.pause(ctx, 3*time.Second, 5*time.Second); err != nil {
			return err
		}
	}

	if !strings.Contains(a.page.URL(), "marketplace/create") {
		return fmt.Errorf("not on the listing creation page (current: %s)", a.page.URL())
	}

	a.dismissPopups(ctx)
	return nil
}

func (a *Automation) waitForLogin(ctx context.Context) error {
	deadline := time.Now().Add(a.cfg.LoginWait)
	for isLoginURL(a.page.URL()) {
		if time.Now().After(deadline) {
			return &AuthenticationTimeoutError{Wait: a.cfg.LoginWait}
		}
		if err := a.pacer.Delay(ctx, a.cfg.LoginPoll, a.cfg.LoginPoll); err != nil {
			return err
		}
	}
	return nil
}

func isLoginURL(url string) bool {
	u := strings.ToLower(url)
	return strings.Contains(u, "login") || strings.Contains(u, "checkpoint")
}

// Submit runs the full fill-advance-publish flow for one payload and always
// finishes by re-navigating to the creation page so the next submission
// starts from a known state. Exactly one result per call.
func (a *Automation) Submit(ctx context.Context, payload domain.ListingPayload) domain.SubmissionResult {
	log.Infof("creating listing %q", payload.Title)

	err := a.create(ctx, payload)
	a.recover(ctx)

	if err != nil {
		log.Errorf("listing %q failed: %v", payload.Title, err)
		return domain.Failed(err)
	}
	log.Infof("listing %q published", payload.Title)
	return domain.Succeeded()
}

func (a *Automation) create(ctx context.Context, payload domain.ListingPayload) error {
	if err := a.pause(ctx, 500*time.Millisecond, time.Second); err != nil {
		return err
	}
	a.dismissPopups(ctx)

	// Page one: images plus the core fields.
	if err := a.uploadImages(ctx, payload.Images); err != nil {
		return err
	}
	if err := a.pause(ctx, 800*time.Millisecond, 1200*time.Millisecond); err != nil {
		return err
	}
	if err := a.fillTitle(ctx, payload.Title); err != nil {
		return err
	}
	if err := a.fillPrice(ctx, payload.PriceString()); err != nil {
		return err
	}
	a.selectCategory(ctx, payload.Category)
	a.selectCondition(ctx, payload.Condition.Label())
	if err := a.fillDescription(ctx, payload.Description); err != nil {
		return err
	}
	if payload.Location != "" {
		a.fillLocation(ctx, payload.Location)
	}
	// Boost lives on page one; past the first advance the switch is gone.
	if payload.Boost {
		a.toggleBoost(ctx)
	}

	// Page two: delivery method.
	if err := a.clickControl(ctx, nextLabel); err != nil {
		return err
	}
	if err := a.pause(ctx, 800*time.Millisecond, 1200*time.Millisecond); err != nil {
		return err
	}
	a.selectDelivery(ctx, payload.DeliveryMethod.Label())

	// Page three: group cross-posting.
	if err := a.clickControl(ctx, nextLabel); err != nil {
		return err
	}
	if err := a.pause(ctx, 800*time.Millisecond, 1200*time.Millisecond); err != nil {
		return err
	}
	a.selectGroups(ctx, payload.Groups)

	// Some page variants add one more step before publish.
	if a.hasControl(nextLabel) {
		if err := a.clickControl(ctx, nextLabel); err != nil {
			return err
		}
		if err := a.pause(ctx, 800*time.Millisecond, 1200*time.Millisecond); err != nil {
			return err
		}
	}

	if err := a.clickControl(ctx, publishLabel); err != nil {
		return err
	}
	return a.pause(ctx, time.Second, 1500*time.Millisecond)
}

// recover re-navigates to the entry URL regardless of outcome. It never
// propagates failures: recovery must not turn a published listing into a
// reported error, nor mask the error that preceded it.
func (a *Automation) recover(ctx context.Context) {
	if err := a.pause(ctx, time.Second, 2*time.Second); err != nil {
		log.Warnf("recovery pause interrupted: %v", err)
	}
	if err := a.nav.Navigate(ctx, a.cfg.CreateURL); err != nil {
		log.Warnf("failed to return to the creation page: %v", err)
		return
	}
	if err := a.pause(ctx, 2*time.Second, 3*time.Second); err != nil {
		return
	}
	a.dismissPopups(ctx)
}

// dismissPopups walks the known interstitial patterns with short bounded
// waits. Absence of a pattern is not an error.
func (a *Automation) dismissPopups(ctx context.Context) {
	dismissed := 0
	for _, selector := range popupDismissSelectors {
		el := a.page.WaitFor(selector, a.scaled(2*time.Second))
		if el == nil || !el.Visible() {
			continue
		}
		if err := el.Click(); err != nil {
			log.Debugf("popup dismissal %q failed: %v", selector, err)
			continue
		}
		dismissed++
		if err := a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond); err != nil {
			return
		}
	}
	if dismissed > 0 {
		log.Infof("dismissed %d interstitial dialog(s)", dismissed)
		_ = a.pause(ctx, time.Second, 1500*time.Millisecond)
	}
}

func (a *Automation) uploadImages(ctx context.Context, images []string) error {
	if err := a.pause(ctx, 1500*time.Millisecond, 2*time.Second); err != nil {
		return err
	}

	input := a.page.WaitFor(selFileInput, a.scaled(5*time.Second))
	if input == nil {
		return &UploadError{Diag: diagnose(a.page)}
	}

	abs := make([]string, 0, len(images))
	for _, img := range images {
		p, err := filepath.Abs(img)
		if err != nil {
			return fmt.Errorf("failed to resolve image path %q: %w", img, err)
		}
		abs = append(abs, p)
	}
	if err := input.SetFiles(abs); err != nil {
		return &UploadError{Diag: fmt.Sprintf("file input rejected upload: %v", err)}
	}
	log.Infof("uploaded %d image(s)", len(abs))
	return a.pause(ctx, time.Second, 1500*time.Millisecond)
}

func (a *Automation) fillTitle(ctx context.Context, title string) error {
	inputs := visibleTextInputs(a.page)
	if len(inputs) < 1 {
		return &FieldNotFoundError{Field: "title", Diag: diagnose(a.page)}
	}
	el := inputs[0]
	if err := el.Fill(""); err != nil {
		return &FieldNotFoundError{Field: "title", Diag: fmt.Sprintf("input rejected clear: %v", err)}
	}
	if err := a.pacer.TypeText(ctx, el, title, a.cfg.TypeCharMin, a.cfg.TypeCharMax); err != nil {
		return fmt.Errorf("typing title: %w", err)
	}
	log.Debug("title entered")
	return nil
}

func (a *Automation) fillPrice(ctx context.Context, price string) error {
	inputs := visibleTextInputs(a.page)
	if len(inputs) < 2 {
		return &FieldNotFoundError{Field: "price", Diag: diagnose(a.page)}
	}
	el := inputs[1]
	if err := el.Fill(""); err != nil {
		return &FieldNotFoundError{Field: "price", Diag: fmt.Sprintf("input rejected clear: %v", err)}
	}
	if err := a.pacer.TypeText(ctx, el, price, 30*time.Millisecond, 80*time.Millisecond); err != nil {
		return fmt.Errorf("typing price: %w", err)
	}
	log.Debug("price entered")
	return nil
}

// selectCategory types a short prefix into the category combobox, tries
// keyboard selection, then falls back to clicking the first visible option.
// Category may be optional on some page variants, so failure is a warning.
func (a *Automation) selectCategory(ctx context.Context, category string) {
	el, strategy := firstMatch(a.page,
		Matcher{"category-aria-label", func(p Page) Element { return firstVisible(p, selCategoryInput) }},
		Matcher{"combobox-role", func(p Page) Element { return firstVisible(p, selCombobox) }},
	)
	if el == nil {
		log.Warnf("could not find a category field, leaving category unset")
		return
	}
	log.Debugf("category field located via %s", strategy)

	prefix := category
	if len(prefix) > 5 {
		prefix = prefix[:5]
	}

	if err := el.Fill(""); err != nil {
		log.Warnf("category field rejected clear: %v", err)
		return
	}
	if err := a.pacer.TypeText(ctx, el, prefix, 80*time.Millisecond, 150*time.Millisecond); err != nil {
		log.Warnf("typing category prefix failed: %v", err)
		return
	}
	if err := a.pause(ctx, time.Second, 1500*time.Millisecond); err != nil {
		return
	}

	// Keyboard selection first: highlight the top suggestion and accept.
	if err := el.Press("ArrowDown"); err == nil {
		_ = a.pause(ctx, 300*time.Millisecond, 500*time.Millisecond)
		_ = el.Press("Enter")
		_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
	}
	if value, err := el.Value(); err == nil && len(value) > len(prefix) {
		log.Infof("category selected via keyboard: %q", value)
		return
	}

	// Fallback: click the first visible entry in any recognized option list.
	if opt := firstVisible(a.page, selOptionList); opt != nil {
		if err := opt.Click(); err == nil {
			log.Info("category selected by clicking the first suggestion")
			_ = a.pause(ctx, 300*time.Millisecond, 500*time.Millisecond)
			return
		}
	}
	log.Warnf("could not select category %q from the dropdown", category)
}

// selectCondition opens the labeled Condition control and clicks the option
// matching the requested label. A missing condition never aborts the
// submission.
func (a *Automation) selectCondition(ctx context.Context, label string) {
	els, err := a.page.QueryAll(selTextish)
	if err != nil {
		log.Warnf("condition lookup failed: %v", err)
		return
	}

	var opened bool
	for _, el := range els {
		text := strings.TrimSpace(el.Text())
		if text != "Condition" && !strings.Contains(strings.ToLower(text), "condition") {
			continue
		}
		target := clickableAncestor(el, 5, func(e Element) bool {
			role := e.Attr("role")
			return role == "button" || role == "combobox" ||
				strings.Contains(strings.ToLower(e.Attr("aria-label")), "condition")
		})
		if target == nil {
			target = el
		}
		if err := target.Click(); err != nil {
			continue
		}
		opened = true
		break
	}
	if !opened {
		log.Warn("could not find the condition dropdown, using the page default")
		return
	}
	if err := a.pause(ctx, 800*time.Millisecond, 1200*time.Millisecond); err != nil {
		return
	}

	opts, err := a.page.QueryAll(selOptionish)
	if err != nil {
		log.Warnf("condition options lookup failed: %v", err)
		return
	}
	for _, opt := range opts {
		text := strings.TrimSpace(opt.Text())
		if text != label && !strings.Contains(text, label) {
			continue
		}
		if !opt.Visible() {
			continue
		}
		if err := opt.Click(); err == nil {
			log.Infof("condition selected: %s", label)
			_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
			return
		}
	}
	log.Warnf("could not select condition %q, using the page default", label)
}

func (a *Automation) fillDescription(ctx context.Context, description string) error {
	el := firstVisible(a.page, selTextarea)
	if el == nil {
		return &FieldNotFoundError{Field: "description", Diag: diagnose(a.page)}
	}
	if err := el.Fill(""); err != nil {
		return &FieldNotFoundError{Field: "description", Diag: fmt.Sprintf("textarea rejected clear: %v", err)}
	}
	if err := a.pacer.TypeText(ctx, el, description, 10*time.Millisecond, 30*time.Millisecond); err != nil {
		return fmt.Errorf("typing description: %w", err)
	}
	log.Debug("description entered")
	return nil
}

func (a *Automation) fillLocation(ctx context.Context, location string) {
	el, _ := firstMatch(a.page,
		Matcher{"location-placeholder", func(p Page) Element { return p.WaitFor(selLocationPH, a.scaled(5*time.Second)) }},
		Matcher{"location-aria-label", func(p Page) Element { return p.WaitFor(selLocationAria, a.scaled(5*time.Second)) }},
	)
	if el == nil {
		log.Warnf("could not set location to %q: no location input found", location)
		return
	}
	if err := el.Fill(""); err != nil {
		log.Warnf("location input rejected clear: %v", err)
		return
	}
	if err := a.pacer.TypeText(ctx, el, location, a.cfg.TypeCharMin, a.cfg.TypeCharMax); err != nil {
		log.Warnf("typing location failed: %v", err)
		return
	}
	if err := a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond); err != nil {
		return
	}
	// Accept the top suggestion.
	if err := el.Press("Enter"); err != nil {
		log.Warnf("confirming location failed: %v", err)
		return
	}
	_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
	log.Infof("location set to %q", location)
}

// Boost keywords a candidate switch's enclosing text must carry. The guard
// is deliberately conservative: an unrelated toggle must never be flipped.
var boostKeywords = []string{"boost", "promote", "featured", "sponsored"}

func (a *Automation) toggleBoost(ctx context.Context) {
	switches, err := a.page.QueryAll(selSwitch)
	if err != nil {
		log.Warnf("boost switch lookup failed: %v", err)
		return
	}
	for _, sw := range switches {
		if !sw.Visible() {
			continue
		}
		// Only a currently-off switch is a candidate.
		off := sw.Attr("aria-checked") == "false" ||
			strings.Contains(strings.ToLower(sw.Attr("aria-label")), "disabled")
		if !off {
			continue
		}
		matched := false
		for _, kw := range boostKeywords {
			if ancestorTextContains(sw, 5, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if err := sw.Click(); err != nil {
			log.Warnf("boost switch click failed: %v", err)
			return
		}
		log.Info("boost listing enabled")
		_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
		return
	}
	log.Warn("could not find a boost toggle (fine when boost is unavailable)")
}

// clickControl finds the clickable control labeled exactly label, scrolls it
// into view, and clicks it. Fatal when absent: the flow cannot proceed.
func (a *Automation) clickControl(ctx context.Context, label string) error {
	spans, err := a.page.QueryAll(selSpan)
	if err != nil {
		return &NavigationControlNotFoundError{Label: label, Diag: fmt.Sprintf("span query failed: %v", err)}
	}
	for _, span := range spans {
		if strings.TrimSpace(span.Text()) != label {
			continue
		}
		target := clickableAncestor(span.Parent(), 10, isButton)
		if target == nil {
			continue
		}
		if err := target.ScrollIntoView(); err != nil {
			log.Debugf("scrolling %q control into view failed: %v", label, err)
		}
		if err := a.pause(ctx, 300*time.Millisecond, 600*time.Millisecond); err != nil {
			return err
		}
		if err := target.Click(); err != nil {
			return &NavigationControlNotFoundError{Label: label, Diag: fmt.Sprintf("click failed: %v", err)}
		}
		log.Infof("clicked %q", label)
		return nil
	}
	return &NavigationControlNotFoundError{Label: label, Diag: diagnose(a.page)}
}

// hasControl reports whether a control labeled exactly label is present.
func (a *Automation) hasControl(label string) bool {
	spans, err := a.page.QueryAll(selSpan)
	if err != nil {
		return false
	}
	for _, span := range spans {
		if strings.TrimSpace(span.Text()) == label {
			return true
		}
	}
	return false
}

// selectDelivery matches the requested method label against visible
// candidates and clicks the nearest checkbox/clickable container. The
// platform default applies when nothing matches.
func (a *Automation) selectDelivery(ctx context.Context, label string) {
	els, err := a.page.QueryAll(selTextish)
	if err != nil {
		log.Warnf("delivery method lookup failed: %v", err)
		return
	}
	want := normalizeText(label)
	wantCompact := strings.ReplaceAll(want, " ", "")

	for _, el := range els {
		text := normalizeText(el.Text())
		if text != want && !strings.Contains(text, wantCompact) {
			continue
		}

		if el.Attr("role") == "checkbox" {
			if el.Click() == nil {
				log.Infof("delivery method selected: %s", label)
				_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
				return
			}
		}
		if anc := clickableAncestor(el.Parent(), 5, func(e Element) bool { return e.Attr("role") == "checkbox" }); anc != nil {
			if anc.Click() == nil {
				log.Infof("delivery method selected: %s", label)
				_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
				return
			}
		}
		// Structural fallback: a checkbox inside the labeled container,
		// then the container itself.
		if container := el.Parent(); container != nil {
			if cb := container.Find(selCheckbox); cb != nil {
				if cb.Click() == nil {
					log.Infof("delivery method selected: %s", label)
					_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
					return
				}
			}
			if container.Click() == nil {
				log.Infof("delivery method selected: %s", label)
				_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
				return
			}
		}
	}
	log.Warnf("could not find delivery method %q, keeping the platform default", label)
}

// selectGroups ticks the checkboxes for the requested group names (at most
// MaxGroups). With no names it optionally falls back to the first unchecked
// checkbox when auto-join is enabled.
func (a *Automation) selectGroups(ctx context.Context, names []string) {
	if len(names) == 0 {
		if !a.cfg.AutoJoinFirstGroup {
			log.Debug("no groups requested and auto-join disabled, skipping group selection")
			return
		}
		cbs, err := a.page.QueryAll(selCheckbox)
		if err != nil {
			log.Warnf("group checkbox lookup failed: %v", err)
			return
		}
		for _, cb := range cbs {
			if cb.Checked() {
				continue
			}
			if cb.Click() == nil {
				log.Info("selected the first available group")
				_ = a.pause(ctx, 500*time.Millisecond, 800*time.Millisecond)
				return
			}
		}
		log.Warn("no groups available to select (may not be required)")
		return
	}

	if len(names) > domain.MaxGroups {
		names = names[:domain.MaxGroups]
	}
	selected := 0
	for _, name := range names {
		cbs, err := a.page.QueryAll(selCheckbox)
		if err != nil {
			log.Warnf("group checkbox lookup failed: %v", err)
			return
		}
		for _, cb := range cbs {
			if cb.Checked() || !ancestorTextContains(cb, 4, name) {
				continue
			}
			if cb.Click() == nil {
				selected++
				_ = a.pause(ctx, 300*time.Millisecond, 500*time.Millisecond)
			}
			break
		}
	}
	if selected > 0 {
		log.Infof("selected %d group(s)", selected)
	} else {
		log.Warn("no matching groups found")
	}
}

// pause inserts a human-paced delay scaled by the configured pace factor.
func (a *Automation) pause(ctx context.Context, min, max time.Duration) error {
	return a.pacer.Delay(ctx, a.scaled(min), a.scaled(max))
}

func (a *Automation) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * a.cfg.PaceScale)
}
