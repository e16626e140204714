package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/colligo/internal/common"
)

// Validator decides whether a fetched document actually contains the
// disclosure data or is still a loading shell. The site renders its tables
// client-side, so a syntactically valid page can hold nothing but spinner
// text.
type Validator struct {
	minLength       int
	markerThreshold int
	minTables       int
	markers         []string
}

func NewValidator(cfg *common.Config) *Validator {
	return &Validator{
		minLength:       cfg.Validator.MinHTMLLength,
		markerThreshold: cfg.Validator.MarkerThreshold,
		minTables:       cfg.Validator.MinTables,
		markers:         cfg.Validator.LoadingMarkers,
	}
}

// Validate runs all completeness checks against html. Every check runs
// even after one fails so the verdict carries the full picture.
func (v *Validator) Validate(html string) Verdict {
	verdict := Verdict{Length: len(html)}

	if len(html) < v.minLength {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("document too short (%d < %d bytes)", len(html), v.minLength))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("unparseable document: %v", err))
		return verdict
	}

	verdict.MarkerHits = v.countMarkers(doc)
	if verdict.MarkerHits > v.markerThreshold {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("loading markers present (%d > %d)", verdict.MarkerHits, v.markerThreshold))
	}

	verdict.TableCount = doc.Find("table").Length()
	if verdict.TableCount < v.minTables {
		verdict.Reasons = append(verdict.Reasons,
			fmt.Sprintf("too few tables (%d < %d)", verdict.TableCount, v.minTables))
	}

	verdict.Complete = len(verdict.Reasons) == 0
	return verdict
}

// countMarkers sums occurrences of every loading marker in the visible
// page text. Occurrences count, not distinct markers: a page showing the
// same spinner three times is as incomplete as one showing three spinners.
func (v *Validator) countMarkers(doc *goquery.Document) int {
	text := strings.ToLower(doc.Find("body").Text())
	if text == "" {
		text = strings.ToLower(doc.Text())
	}

	hits := 0
	for _, marker := range v.markers {
		hits += strings.Count(text, strings.ToLower(marker))
	}
	return hits
}
