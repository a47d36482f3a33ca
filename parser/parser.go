package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/peterlang-checker/models"
)

const (
	// DetailsSelector matches the bibliographic block on a product page.
	DetailsSelector = "div.document__details"
	// EntrySelector matches one result in a search listing.
	EntrySelector = "div.product-details"
)

// Entry is a single result block from a search listing.
type Entry struct {
	Text string
	Href string
	// Linked is set when the block holds an a[href], even an empty one.
	Linked bool
}

// ValidateResult ensures a classification is complete before export.
func ValidateResult(r models.Result) error {
	switch r.Status {
	case models.StatusAvailable, models.StatusNotAvailable, models.StatusError:
	default:
		return fmt.Errorf("result has unknown status %q", r.Status)
	}
	if strings.TrimSpace(r.SearchURL) == "" {
		return fmt.Errorf("result missing search URL")
	}
	if r.Status == models.StatusAvailable && r.FinalURL == "" {
		return fmt.Errorf("available result missing final URL")
	}
	return nil
}

// CleanCell trims spacing from a spreadsheet cell.
func CleanCell(value string) string {
	return strings.TrimSpace(value)
}

// IsMissing reports whether a cell carries no usable value. Spreadsheet
// exports frequently stringify blank cells as "nan".
func IsMissing(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.EqualFold(value, "nan")
}

// NormalizeISBN removes hyphens so "978-3-631-12345-6" and "9783631123456" compare equal.
func NormalizeISBN(isbn string) string {
	return strings.ReplaceAll(isbn, "-", "")
}

// ContainsISBN reports whether the hyphen-stripped isbn occurs in the hyphen-stripped text.
func ContainsISBN(text, isbn string) bool {
	return strings.Contains(NormalizeISBN(text), NormalizeISBN(isbn))
}

// DocumentText returns the text of the product details block, or of the
// whole page when the block is absent.
func DocumentText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse document page: %w", err)
	}
	details := doc.Find(DetailsSelector).First()
	if details.Length() > 0 {
		return details.Text(), nil
	}
	return doc.Text(), nil
}

// SearchEntries extracts result blocks from a search listing in document order.
// Href is the first link inside the block.
func SearchEntries(body []byte) ([]Entry, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var entries []Entry
	doc.Find(EntrySelector).Each(func(_ int, s *goquery.Selection) {
		href, linked := s.Find("a[href]").First().Attr("href")
		entries = append(entries, Entry{
			Text:   s.Text(),
			Href:   href,
			Linked: linked,
		})
	})
	return entries, nil
}

// MatchEntry returns the first linked entry whose text contains isbn
// verbatim or, ignoring case, title. Empty terms never match.
func MatchEntry(entries []Entry, isbn, title string) (Entry, bool) {
	lowerTitle := strings.ToLower(title)
	for _, entry := range entries {
		if !entry.Linked {
			continue
		}
		if isbn != "" && strings.Contains(entry.Text, isbn) {
			return entry, true
		}
		if lowerTitle != "" && strings.Contains(strings.ToLower(entry.Text), lowerTitle) {
			return entry, true
		}
	}
	return Entry{}, false
}
