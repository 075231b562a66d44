package fetch

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
)

// detailMarker is the label whose presence signals the detail section of a
// rendered game page has loaded.
const detailMarker = "Genres:"

// ExtractDetails pulls the four reference-name lists out of a rendered game
// page. Each list sits in a div next to a bold label, comma-separated.
func ExtractDetails(html string) (catalog.Details, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return catalog.Details{}, fmt.Errorf("parse rendered page: %w", err)
	}
	if !strings.Contains(doc.Text(), detailMarker) {
		return catalog.Details{}, fmt.Errorf("rendered page is missing the %q marker", detailMarker)
	}
	return catalog.Details{
		Genres:    labeledNames(doc, "Genres:"),
		Tags:      labeledNames(doc, "Tags:"),
		Features:  labeledNames(doc, "Features:"),
		Languages: labeledNames(doc, "Languages:"),
	}, nil
}

// validateRendered rejects an extraction that yielded no names at all. A
// half-loaded page can contain the marker while the lists are still empty;
// treating that as a failed attempt lets the retry re-render it.
func validateRendered(details catalog.Details, id int64) error {
	if details.Empty() {
		return fmt.Errorf("game %d: rendered page has no detail lists", id)
	}
	return nil
}

func labeledNames(doc *goquery.Document, label string) []string {
	var raw string
	doc.Find("b").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !strings.Contains(sel.Text(), label) {
			return true
		}
		raw = sel.Parent().Find("div").Text()
		return false
	})
	return splitNames(raw)
}

func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
