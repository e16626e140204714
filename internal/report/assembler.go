// Package report renders extraction bundles into the markdown output
// documents and inspects previously written documents for the batch
// bucketing pass.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

const (
	dailySectionHeading     = "## 每日股價資訊"
	narrativeSectionHeading = "## AI股價走勢分析與操作建議"
	ownershipSectionHeading = "### 每週股權分散表分級資料"

	dailyLoadingPlaceholder     = "*每日股價資訊載入中...*"
	ownershipLoadingPlaceholder = "*股權分散表載入中...*"

	maxDailyRows     = 30
	maxOwnershipRows = 25

	timestampLayout = "2006-01-02 15:04:05"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Assembler renders one bundle into the report document. Rendering is
// deterministic: the same stock, bundle and timestamp always produce the
// same bytes.
type Assembler struct {
	baseURL   string
	outputDir string
}

func NewAssembler(baseURL, outputDir string) *Assembler {
	return &Assembler{baseURL: baseURL, outputDir: outputDir}
}

// Assemble builds the full report document. Sections with no data get a
// loading placeholder instead of an empty table so a reader (and the next
// batch run's inspection) can tell "no data yet" from "no section".
func (a *Assembler) Assemble(stock models.Stock, bundle *models.ExtractionBundle, fetchedAt time.Time) string {
	var parts []string

	if bundle.Title != "" {
		parts = append(parts, "# "+bundle.Title+"\n")
	}

	parts = append(parts, "\n"+dailySectionHeading+"\n")
	if bundle.DataDate != "" {
		parts = append(parts, "**"+bundle.DataDate+"**\n")
	}
	parts = append(parts, currentPriceTable(bundle.CurrentPrices)...)
	parts = append(parts, dailyTable(bundle.Daily)...)

	parts = append(parts, "\n"+narrativeSectionHeading+"\n")
	parts = append(parts, bundle.Narrative...)

	parts = append(parts, "\n"+ownershipSectionHeading+"\n")
	parts = append(parts, ownershipTable(bundle.Ownership)...)

	parts = append(parts,
		"\n---\n",
		"**股票代號:** "+stock.Code,
		"**公司名稱:** "+stock.Name,
		"**資料來源:** "+stock.PageURL(a.baseURL),
		"**抓取時間:** "+fetchedAt.Format(timestampLayout),
	)

	content := strings.Join(parts, "\n")
	return blankRunRe.ReplaceAllString(content, "\n\n")
}

// ReportPath returns where the stock's report lives on disk.
func (a *Assembler) ReportPath(stock models.Stock) string {
	return filepath.Join(a.outputDir, stock.ReportFilename())
}

// Write renders and writes the report, creating the output directory on
// first use. Returns the path written.
func (a *Assembler) Write(stock models.Stock, bundle *models.ExtractionBundle, fetchedAt time.Time) (string, error) {
	if err := os.MkdirAll(a.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(a.outputDir, stock.ReportFilename())
	content := a.Assemble(stock, bundle, fetchedAt)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return path, nil
}

// currentPriceTable renders the four fixed price slots. Missing slots
// render as "-" so the table shape never varies.
func currentPriceTable(prices map[string]string) []string {
	lines := []string{
		"| 項目 | 價格 |",
		"|------|------|",
	}
	for _, key := range []string{"開盤", "最高", "最低", "收盤"} {
		value := prices[key]
		if value == "" {
			value = "-"
		}
		lines = append(lines, fmt.Sprintf("| %s | %s |", key, value))
	}
	return append(lines, "")
}

// dailyTable renders the most recent bars, newest first. Daily bars arrive
// newest-first from extraction, so the first rows are the recent ones.
func dailyTable(bars []models.PriceBar) []string {
	if len(bars) == 0 {
		return []string{dailyLoadingPlaceholder + "\n"}
	}

	lines := []string{
		"| 日期 | 開盤價 | 最高價 | 最低價 | 收盤價 | 成交量 |",
		"|------|--------|--------|--------|--------|--------|",
	}
	for i, bar := range bars {
		if i >= maxDailyRows {
			break
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s | %s |",
			bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume))
	}
	return append(lines, "")
}

func ownershipTable(snapshots []models.OwnershipSnapshot) []string {
	if len(snapshots) == 0 {
		return []string{ownershipLoadingPlaceholder + "\n"}
	}

	lines := []string{
		"| 日期 | 100張以下持股比例 | 100-1000張持股比例 | 1000張以上持股比例 | 總股東人數 |",
		"|------|-------------------|--------------------|--------------------|----------|",
	}
	for i, s := range snapshots {
		if i >= maxOwnershipRows {
			break
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s | %s |",
			s.Date, s.Small, s.Medium, s.Large, s.TotalHolders))
	}
	return append(lines, "")
}
