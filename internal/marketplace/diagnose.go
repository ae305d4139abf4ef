package marketplace

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	log "github.com/sirupsen/logrus"
)

// summarizeHTML condenses a page snapshot into one line describing what the
// form actually offered, so a failed record's error text says more than
// "field not found". Parsing failures degrade to an empty summary.
func summarizeHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Debugf("failed to parse page snapshot: %v", err)
		return ""
	}

	textInputs := doc.Find(`input[type="text"]`).Length()
	fileInputs := doc.Find(`input[type="file"]`).Length()
	textareas := doc.Find("textarea").Length()
	buttons := doc.Find(`button, [role="button"]`).Length()
	checkboxes := doc.Find(`input[type="checkbox"]`).Length()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	summary := fmt.Sprintf("page offered %d text inputs, %d file inputs, %d textareas, %d buttons, %d checkboxes",
		textInputs, fileInputs, textareas, buttons, checkboxes)
	if title != "" {
		summary = fmt.Sprintf("%s; title %q", summary, title)
	}
	return summary
}

// diagnose captures and summarizes the live page for error reporting.
func diagnose(p Page) string {
	html, err := p.Content()
	if err != nil {
		log.Debugf("failed to capture page content for diagnostics: %v", err)
		return ""
	}
	return summarizeHTML(html)
}
