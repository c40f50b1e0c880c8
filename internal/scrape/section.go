package scrape

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Expected-absence conditions, not failures: the source simply has not
// published the structure we look for. Callers check with errors.Is and
// skip the source for this cycle.
var (
	ErrNoPanelToday = errors.New("no panel for today's date")
	ErrNoContent    = errors.New("date title found but no content block")
)

// titleCandidates are tried in priority order before falling back to an
// exhaustive element scan. Order matters: several date panels coexist on the
// page and the first match wins.
var titleCandidates = []string{
	".elementor-accordion-title",
	".elementor-tab-title",
	".elementor-toggle-title",
	".elementor-accordion-item .elementor-accordion-title",
	".elementor-toggle-item .elementor-toggle-title",
	"[role='tab']",
	"button[aria-controls]",
	"a[aria-controls]",
	"h1", "h2", "h3", "h4",
}

var contentCandidates = []string{
	".elementor-tab-content",
	".elementor-accordion-content",
}

const itemContainers = ".elementor-accordion-item, .elementor-toggle-item"

// maxSiblingScan bounds how far past the title the sibling scan looks for a
// content block.
const maxSiblingScan = 7

// Section is the extracted panel: its whitespace-normalized text and the
// SHA-1 of that text, used upstream for change detection.
type Section struct {
	Hash string
	Text string
}

// ExtractSection locates the panel describing outages for the given date and
// reduces it to normalized text plus a content hash. It returns
// ErrNoPanelToday when no title matches the date and ErrNoContent when a
// matching title has no locatable content block.
func ExtractSection(body string, date time.Time) (Section, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return Section{}, fmt.Errorf("parse page: %w", err)
	}

	title := findDateTitle(doc, DatePattern(date))
	if title == nil {
		return Section{}, ErrNoPanelToday
	}

	content := findContentForTitle(doc, title)
	if content == nil {
		return Section{}, ErrNoContent
	}

	text := normalizeText(content.Text())
	sum := sha1.Sum([]byte(text))
	return Section{Hash: hex.EncodeToString(sum[:]), Text: text}, nil
}

// findDateTitle searches the candidate title selectors in priority order,
// then every element on the page, for text matching the date pattern.
func findDateTitle(doc *goquery.Document, dateRe *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	for _, sel := range titleCandidates {
		doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
			if dateRe.MatchString(normalizeText(el.Text())) {
				found = el
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	doc.Find("*").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		txt := normalizeText(el.Text())
		if txt != "" && dateRe.MatchString(txt) {
			found = el
			return false
		}
		return true
	})
	return found
}

// findContentForTitle locates the content block paired with a title element,
// trying in order: the aria-controls panel reference, a bounded scan of
// subsequent siblings (content class on the sibling itself or a descendant),
// and finally a content-class descendant of the enclosing accordion item.
func findContentForTitle(doc *goquery.Document, title *goquery.Selection) *goquery.Selection {
	if id, ok := title.Attr("aria-controls"); ok && id != "" {
		panel := doc.Find("#" + id).First()
		if panel.Length() > 0 && hasText(panel) {
			return panel
		}
	}

	siblings := title.NextAll()
	limit := siblings.Length()
	if limit > maxSiblingScan {
		limit = maxSiblingScan
	}
	for i := 0; i < limit; i++ {
		sibling := siblings.Eq(i)
		name := goquery.NodeName(sibling)
		if name == "script" || name == "style" {
			continue
		}
		for _, sel := range contentCandidates {
			if sibling.Is(sel) && hasText(sibling) {
				return sibling
			}
			if inner := sibling.Find(sel).First(); inner.Length() > 0 && hasText(inner) {
				return inner
			}
		}
	}

	if item := title.Closest(itemContainers); item.Length() > 0 {
		for _, sel := range contentCandidates {
			if node := item.Find(sel).First(); node.Length() > 0 && hasText(node) {
				return node
			}
		}
	}

	return nil
}

func hasText(sel *goquery.Selection) bool {
	return strings.TrimSpace(sel.Text()) != ""
}

// normalizeText collapses all whitespace runs, including non-breaking
// spaces, to single spaces and trims the ends.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}
