package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/colligo/internal/models"
)

var testStock = models.Stock{Code: "2330", Name: "台積電"}

func testBundle(dailyRows, ownershipRows int) *models.ExtractionBundle {
	bundle := &models.ExtractionBundle{
		Title:    "台積電 2330 股價資訊",
		DataDate: "資料日期：2025/08/22 收盤後更新",
		CurrentPrices: map[string]string{
			"開盤": "1,050", "最高": "1,070", "最低": "1,045", "收盤": "1,065",
		},
		Narrative: []string{
			"\n### 一、技術面分析：均線呈現多頭排列\n",
			"整體而言該股短期走勢偏多但須留意大盤量能變化與市場情緒。\n",
		},
	}
	for i := 0; i < dailyRows; i++ {
		bundle.Daily = append(bundle.Daily, models.PriceBar{
			Date: fmt.Sprintf("2025/08/%02d", 28-i%28), Open: "1,050", High: "1,070",
			Low: "1,045", Close: "1,065", Volume: "35,000",
		})
	}
	for i := 0; i < ownershipRows; i++ {
		bundle.Ownership = append(bundle.Ownership, models.OwnershipSnapshot{
			Date: fmt.Sprintf("2025/08/%02d", 22-i%22), Small: "25.5%", Medium: "30.1%",
			Large: "44.4%", TotalHolders: "36,000",
		})
	}
	return bundle
}

func TestAssembler_Layout(t *testing.T) {
	a := NewAssembler("https://poorstock.com", t.TempDir())
	content := a.Assemble(testStock, testBundle(5, 3), time.Date(2025, 8, 22, 10, 30, 0, 0, time.UTC))

	// Sections appear in document order.
	idxTitle := strings.Index(content, "# 台積電 2330 股價資訊")
	idxDaily := strings.Index(content, dailySectionHeading)
	idxNarr := strings.Index(content, narrativeSectionHeading)
	idxOwner := strings.Index(content, ownershipSectionHeading)
	idxFooter := strings.Index(content, "---")

	require.GreaterOrEqual(t, idxTitle, 0)
	assert.Less(t, idxTitle, idxDaily)
	assert.Less(t, idxDaily, idxNarr)
	assert.Less(t, idxNarr, idxOwner)
	assert.Less(t, idxOwner, idxFooter)

	assert.Contains(t, content, "**資料日期：2025/08/22 收盤後更新**")
	assert.Contains(t, content, "| 開盤 | 1,050 |")
	assert.Contains(t, content, "| 2025/08/28 | 1,050 | 1,070 | 1,045 | 1,065 | 35,000 |")
	assert.Contains(t, content, "**股票代號:** 2330")
	assert.Contains(t, content, "**資料來源:** https://poorstock.com/stock/2330")
	assert.Contains(t, content, "**抓取時間:** 2025-08-22 10:30:00")
}

func TestAssembler_Deterministic(t *testing.T) {
	a := NewAssembler("https://poorstock.com", t.TempDir())
	ts := time.Date(2025, 8, 22, 10, 30, 0, 0, time.UTC)

	first := a.Assemble(testStock, testBundle(10, 5), ts)
	second := a.Assemble(testStock, testBundle(10, 5), ts)
	assert.Equal(t, first, second, "same inputs must produce identical bytes")
}

func TestAssembler_MissingSlotsRenderDash(t *testing.T) {
	a := NewAssembler("https://poorstock.com", t.TempDir())
	bundle := testBundle(1, 1)
	bundle.CurrentPrices = map[string]string{"開盤": "1,050"}

	content := a.Assemble(testStock, bundle, time.Now())
	assert.Contains(t, content, "| 開盤 | 1,050 |")
	assert.Contains(t, content, "| 最高 | - |")
	assert.Contains(t, content, "| 最低 | - |")
	assert.Contains(t, content, "| 收盤 | - |")
}

func TestAssembler_LoadingPlaceholders(t *testing.T) {
	a := NewAssembler("https://poorstock.com", t.TempDir())
	content := a.Assemble(testStock, testBundle(0, 0), time.Now())

	assert.Contains(t, content, dailyLoadingPlaceholder)
	assert.Contains(t, content, ownershipLoadingPlaceholder)
	assert.NotContains(t, content, "| 日期 |")
}

func TestAssembler_RowCaps(t *testing.T) {
	a := NewAssembler("https://poorstock.com", t.TempDir())
	content := a.Assemble(testStock, testBundle(60, 40), time.Now())

	dailyRows := strings.Count(content, "| 35,000 |")
	assert.Equal(t, maxDailyRows, dailyRows)

	ownershipRows := strings.Count(content, "| 25.5% |")
	assert.Equal(t, maxOwnershipRows, ownershipRows)

	// Newest row (extraction order head) survives the cap.
	assert.Contains(t, content, "| 2025/08/28 | 1,050 |")
}

func TestAssembler_CollapsesBlankRuns(t *testing.T) {
	a := NewAssembler("https://poorstock.com", t.TempDir())
	bundle := testBundle(0, 0)
	bundle.Narrative = nil
	bundle.DataDate = ""

	content := a.Assemble(testStock, bundle, time.Now())
	assert.NotContains(t, content, "\n\n\n")
}

func TestAssembler_WriteCreatesDirectoryAndFile(t *testing.T) {
	dir := t.TempDir() + "/nested/poorstock"
	a := NewAssembler("https://poorstock.com", dir)

	path, err := a.Write(testStock, testBundle(2, 2), time.Now())
	require.NoError(t, err)
	assert.Equal(t, dir+"/poorstock_2330_台積電.md", path)

	inspection := NewInspector().Inspect(path)
	assert.True(t, inspection.Exists)
}
