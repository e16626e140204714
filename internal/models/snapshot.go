package models

import "time"

// PageSnapshot is the raw HTML captured by the most recent fetch of one
// stock's page. One snapshot per code; each fetch replaces the previous
// one. Snapshots let extraction be re-run offline after a heuristic
// change without refetching.
type PageSnapshot struct {
	Code        string    `badgerhold:"key" json:"code"`
	URL         string    `json:"url"`
	HTML        string    `json:"html"`
	Strategy    string    `json:"strategy"`
	StatusCode  int       `json:"status_code"`
	ContentSize int       `json:"content_size"`
	FetchedAt   time.Time `json:"fetched_at"`
}
