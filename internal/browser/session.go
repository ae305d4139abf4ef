// Package browser owns the lifecycle of a single Chromium process and its
// one active page. A persistent profile keeps the operator's login alive
// between runs; persistent contexts must run headful because Chromium will
// not unlock encrypted profile data in headless mode.
package browser

import (
	"context"
	"strings"
	"time"

	pw "github.com/playwright-community/playwright-go"
	log "github.com/sirupsen/logrus"
)

const (
	launchTimeout   = 60 * time.Second
	navigateTimeout = 60 * time.Second
)

var stealthArgs = []string{
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--no-sandbox",
	"--disable-setuid-sandbox",
}

// Pages loaded by the session never see the automation flag.
const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

type namedCloser struct {
	name  string
	close func() error
}

// Session drives one browser process with one interaction page.
// States: unstarted -> started -> closed.
type Session struct {
	profilePath string

	driver  *pw.Playwright
	browser pw.Browser
	context pw.BrowserContext
	page    pw.Page

	closers []namedCloser
}

// NewSession prepares an unstarted session. An empty profilePath launches an
// ephemeral, unauthenticated browser.
func NewSession(profilePath string) *Session {
	return &Session{profilePath: profilePath}
}

// Start launches the browser. With a profile path it opens a headful
// persistent context with the stealth arguments applied; otherwise a plain
// ephemeral context. Fails with *SessionStartError.
func (s *Session) Start() error {
	if err := pw.Install(&pw.RunOptions{Browsers: []string{"chromium"}, Verbose: false}); err != nil {
		log.Warnf("playwright install check failed (continuing, driver may already be present): %v", err)
	}

	driver, err := pw.Run()
	if err != nil {
		return &SessionStartError{Err: err}
	}
	s.driver = driver

	if s.profilePath != "" {
		err = s.startPersistent(driver)
	} else {
		err = s.startEphemeral(driver)
	}
	if err != nil {
		// Launch failed after the driver came up: stop the driver so a
		// retry starts clean.
		if stopErr := driver.Stop(); stopErr != nil {
			log.Warnf("failed to stop playwright driver after launch error: %v", stopErr)
		}
		s.driver = nil
		return err
	}

	if err := s.page.AddInitScript(pw.Script{Content: pw.String(hideWebdriverScript)}); err != nil {
		log.Warnf("failed to install stealth init script: %v", err)
	}

	log.Infof("browser session started (persistent profile: %v)", s.profilePath != "")
	return nil
}

func (s *Session) startPersistent(driver *pw.Playwright) error {
	context, err := driver.Chromium.LaunchPersistentContext(s.profilePath, pw.BrowserTypeLaunchPersistentContextOptions{
		Headless:   pw.Bool(false),
		Args:       stealthArgs,
		Viewport:   &pw.Size{Width: 1920, Height: 1080},
		Locale:     pw.String("en-US"),
		TimezoneId: pw.String("America/New_York"),
		Timeout:    pw.Float(float64(launchTimeout.Milliseconds())),
		SlowMo:     pw.Float(100),
	})
	if err != nil {
		return &SessionStartError{Locked: looksLocked(err), Err: err}
	}
	s.context = context

	pages := context.Pages()
	if len(pages) > 0 {
		s.page = pages[0]
	} else {
		page, err := context.NewPage()
		if err != nil {
			return &SessionStartError{Err: err}
		}
		s.page = page
	}

	s.closers = []namedCloser{
		{"page", func() error { return s.page.Close() }},
		{"context", func() error { return s.context.Close() }},
		{"driver", s.driver.Stop},
	}
	return nil
}

func (s *Session) startEphemeral(driver *pw.Playwright) error {
	browser, err := driver.Chromium.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(false),
		Args:     stealthArgs,
		Timeout:  pw.Float(float64(launchTimeout.Milliseconds())),
	})
	if err != nil {
		return &SessionStartError{Err: err}
	}
	s.browser = browser

	context, err := browser.NewContext(pw.BrowserNewContextOptions{
		Viewport:   &pw.Size{Width: 1920, Height: 1080},
		Locale:     pw.String("en-US"),
		TimezoneId: pw.String("America/New_York"),
	})
	if err != nil {
		return &SessionStartError{Err: err}
	}
	s.context = context

	page, err := context.NewPage()
	if err != nil {
		return &SessionStartError{Err: err}
	}
	s.page = page

	s.closers = []namedCloser{
		{"page", func() error { return s.page.Close() }},
		{"context", func() error { return s.context.Close() }},
		{"browser", func() error { return s.browser.Close() }},
		{"driver", s.driver.Stop},
	}
	return nil
}

// looksLocked recognizes launch failures caused by another process holding
// the profile directory.
func looksLocked(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"singletonlock", "already in use", "profile is in use", "decrypt", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Navigate loads url on the active page and waits until network activity is
// quiescent, bounded by the navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(url, pw.PageGotoOptions{
		WaitUntil: pw.WaitUntilStateNetworkidle,
		Timeout:   pw.Float(float64(navigateTimeout.Milliseconds())),
	}); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	return nil
}

// Page exposes the single interaction surface. The caller that holds the
// session owns the page exclusively.
func (s *Session) Page() pw.Page {
	return s.page
}

// Close releases page, context, browser process, and the driver, in that
// order. Each step catches and logs its own failure; teardown is
// best-effort and total even when an earlier step fails.
func (s *Session) Close() {
	for _, c := range s.closers {
		closeQuietly(c)
	}
	s.closers = nil
	log.Info("browser session closed")
}

func closeQuietly(c namedCloser) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("panic closing browser %s (ignored): %v", c.name, r)
		}
	}()
	if c.close == nil {
		return
	}
	if err := c.close(); err != nil {
		log.Warnf("error closing browser %s (non-critical): %v", c.name, err)
	}
}
