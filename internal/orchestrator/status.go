package orchestrator

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/universe"
)

// Status summarizes the ledger against the universe and the output
// directory. Everything is derived from disk state; no network.
type Status struct {
	TotalStocks        int      `json:"total_stocks"`
	Successful         int      `json:"successful"`
	Failed             int      `json:"failed"`
	Unprocessed        int      `json:"unprocessed"`
	ReportFiles        int      `json:"report_files_found"`
	SuccessRate        float64  `json:"success_rate"`
	LastUpdated        string   `json:"last_updated"`
	ProcessingDuration string   `json:"processing_duration"`
	Consistent         bool     `json:"consistent"`
	ProcessedToday     int      `json:"processed_today"`
	ProcessedThisWeek  int      `json:"processed_this_week"`
	FailedStocks       []string `json:"failed_stocks,omitempty"`
}

// BuildStatus reads the universe and ledger and computes the report.
// A missing ledger means nothing has been processed yet; that is a valid
// status, not an error.
func BuildStatus(cfg *common.Config, ledgerStore *ledger.Store, now time.Time) (*Status, error) {
	uni, err := universe.Load(cfg.UniversePath())
	if err != nil {
		return nil, err
	}

	entries, err := ledgerStore.ReadAll()
	if err != nil {
		return nil, err
	}

	status := &Status{TotalStocks: uni.Len()}

	reports, _ := filepath.Glob(filepath.Join(cfg.OutputPath(), "poorstock_*.md"))
	status.ReportFiles = len(reports)

	byFilename := make(map[string]models.LedgerEntry, len(entries))
	for _, entry := range entries {
		byFilename[entry.Filename] = entry
		if entry.Failed() {
			status.Failed++
		} else {
			status.Successful++
		}
	}

	processed := len(entries)
	if status.TotalStocks > processed {
		status.Unprocessed = status.TotalStocks - processed
	}
	if processed > 0 {
		status.SuccessRate = float64(status.Successful) / float64(processed) * 100
	}

	status.fillTimeMetrics(entries, now)
	status.fillBreakdown(uni.Stocks(), byFilename, now)

	// The ledger and the directory drift when reports are deleted by
	// hand or a run died between the write and the upsert.
	status.Consistent = status.ReportFiles >= status.Successful

	return status, nil
}

// fillTimeMetrics derives last-updated and batch-duration strings from
// the successful entries' process times.
func (s *Status) fillTimeMetrics(entries []models.LedgerEntry, now time.Time) {
	s.LastUpdated = "Never"
	s.ProcessingDuration = "N/A"

	var first, last time.Time
	count := 0
	for _, entry := range entries {
		if entry.Failed() {
			continue
		}
		t, ok := models.ParseLedgerTime(entry.ProcessTime)
		if !ok {
			continue
		}
		if count == 0 || t.Before(first) {
			first = t
		}
		if count == 0 || t.After(last) {
			last = t
		}
		count++
	}

	if count == 0 {
		return
	}

	s.LastUpdated = common.FormatTimeAgo(now.Sub(last))
	if count > 1 {
		s.ProcessingDuration = common.FormatDuration(last.Sub(first))
	} else {
		s.ProcessingDuration = "Single batch"
	}
}

// fillBreakdown computes the recency counters and the failed-stock list.
func (s *Status) fillBreakdown(stocks []models.Stock, byFilename map[string]models.LedgerEntry, now time.Time) {
	// Midnight in the ledger's own zone; Truncate works in UTC and would
	// shift the day boundary by the zone offset.
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	weekAgo := today.AddDate(0, 0, -7)

	for _, stock := range stocks {
		entry, ok := byFilename[stock.ReportFilename()]
		if !ok {
			continue
		}

		if entry.Failed() {
			s.FailedStocks = append(s.FailedStocks, fmt.Sprintf("%s (%s)", stock.Code, stock.Name))
			continue
		}

		t, ok := models.ParseLedgerTime(entry.ProcessTime)
		if !ok {
			continue
		}
		if !t.Before(today) {
			s.ProcessedToday++
		}
		if !t.Before(weekAgo) {
			s.ProcessedThisWeek++
		}
	}
}

// RenderTable formats the status as an aligned text table.
func (s *Status) RenderTable(detailed bool) string {
	var b strings.Builder

	b.WriteString("Processing Status\n")
	b.WriteString("=================\n")
	fmt.Fprintf(&b, "%-22s %d\n", "Total stocks:", s.TotalStocks)
	fmt.Fprintf(&b, "%-22s %d\n", "Successful:", s.Successful)
	fmt.Fprintf(&b, "%-22s %d\n", "Failed:", s.Failed)
	fmt.Fprintf(&b, "%-22s %d\n", "Unprocessed:", s.Unprocessed)
	fmt.Fprintf(&b, "%-22s %d\n", "Report files:", s.ReportFiles)
	fmt.Fprintf(&b, "%-22s %.1f%%\n", "Success rate:", s.SuccessRate)
	fmt.Fprintf(&b, "%-22s %s\n", "Last updated:", s.LastUpdated)
	fmt.Fprintf(&b, "%-22s %s\n", "Batch duration:", s.ProcessingDuration)

	if !s.Consistent {
		fmt.Fprintf(&b, "%-22s ledger records %d successes but only %d reports exist\n",
			"Consistency:", s.Successful, s.ReportFiles)
	}

	if detailed {
		b.WriteString("\nBreakdown\n")
		b.WriteString("---------\n")
		fmt.Fprintf(&b, "%-22s %d\n", "Processed today:", s.ProcessedToday)
		fmt.Fprintf(&b, "%-22s %d\n", "Processed this week:", s.ProcessedThisWeek)
		if len(s.FailedStocks) > 0 {
			fmt.Fprintf(&b, "%-22s %s\n", "Failed stocks:", strings.Join(s.FailedStocks, ", "))
		}
	}

	return b.String()
}

// RenderJSON formats the status as indented JSON.
func (s *Status) RenderJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
