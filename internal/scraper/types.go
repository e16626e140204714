// Package scraper fetches disclosure pages and extracts structured records
// from them. Fetching runs through two strategies (a plain HTTP request and
// a headless-browser render) with validation-driven escalation between
// them; extraction classifies tables by content, never by position.
package scraper

import "strings"

// Strategy names the fetch method that produced a result.
type Strategy string

const (
	StrategyDirect   Strategy = "direct"
	StrategyRendered Strategy = "rendered"
)

// FetchResult is the raw outcome of one strategy's fetch. Ephemeral: owned
// by the caller and discarded after extraction.
type FetchResult struct {
	HTML       string
	Strategy   Strategy
	StatusCode int
	Size       int
}

// Verdict is the content-completeness decision for one HTML document.
type Verdict struct {
	Complete   bool
	Reasons    []string
	MarkerHits int
	TableCount int
	Length     int
}

// Reason returns the joined failure reasons, or empty when complete.
func (v Verdict) Reason() string {
	return strings.Join(v.Reasons, "; ")
}
