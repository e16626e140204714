package models

// PriceBar is one daily OHLCV row. All fields keep the source cell text
// verbatim (including thousands separators) so that re-running against an
// unchanged page produces a byte-identical report. Numeric plausibility is
// checked at extraction time, not by re-formatting.
type PriceBar struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// OwnershipSnapshot is one weekly ownership-distribution row.
type OwnershipSnapshot struct {
	Date         string `json:"date"`
	Small        string `json:"small"`         // holdings below 100 lots
	Medium       string `json:"medium"`        // 100-1000 lots
	Large        string `json:"large"`         // above 1000 lots
	TotalHolders string `json:"total_holders"`
}

// ExtractionBundle holds everything extracted from one fetch of one page.
// A bundle is produced fresh per fetch and fully replaces any prior output;
// bundles are never merged.
type ExtractionBundle struct {
	Title         string              `json:"title"`
	DataDate      string              `json:"data_date,omitempty"`
	CurrentPrices map[string]string   `json:"current_prices"`
	Daily         []PriceBar          `json:"daily"`
	Ownership     []OwnershipSnapshot `json:"ownership"`
	Narrative     []string            `json:"narrative,omitempty"`
}

// Complete reports whether the bundle meets the success gate: at least 3 of
// the 4 current-price slots, at least one daily bar and at least one
// ownership row. All three conditions must hold; a partial bundle is still
// written out for visibility but the ledger records the run as failed.
func (b *ExtractionBundle) Complete() bool {
	return len(b.CurrentPrices) >= 3 && len(b.Daily) >= 1 && len(b.Ownership) >= 1
}
