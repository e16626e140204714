package models

import "fmt"

// Stock identifies one listed security from the reference universe.
// Code is the exchange code (e.g. "2330"), Name the display name (e.g. "台積電").
type Stock struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ReportFilename returns the deterministic report filename for this stock.
// The filename doubles as the ledger key, so it must never depend on
// anything except code and name.
func (s Stock) ReportFilename() string {
	return fmt.Sprintf("poorstock_%s_%s.md", s.Code, s.Name)
}

// PageURL returns the disclosure page URL for this stock.
func (s Stock) PageURL(baseURL string) string {
	return fmt.Sprintf("%s/stock/%s", baseURL, s.Code)
}
