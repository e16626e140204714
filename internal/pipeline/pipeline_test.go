package pipeline

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/ledger"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/ternarybob/colligo/internal/snapshot"
)

var testStock = models.Stock{Code: "2330", Name: "台積電"}

func testSetup(t *testing.T) (*common.Config, *Pipeline, *ledger.Store, *snapshot.Store) {
	t.Helper()

	cfg := common.DefaultConfig()
	cfg.BaseDir = t.TempDir()

	snaps, err := snapshot.Open(cfg.SnapshotPath())
	require.NoError(t, err)
	t.Cleanup(func() { snaps.Close() })

	ledgerStore := ledger.NewStore(cfg.LedgerPath(), common.GetLogger())
	p := New(cfg, ledgerStore, snaps)
	t.Cleanup(p.Close)

	return cfg, p, ledgerStore, snaps
}

// fixturePage builds a page with all three data tables populated.
func fixturePage() string {
	var b strings.Builder
	b.WriteString("<html><head><title>台積電 2330 股價資訊</title></head><body>")
	b.WriteString("<p>資料日期：2025/08/22 收盤後更新</p>")

	b.WriteString("<table><tr><td>開盤</td><td>1,050</td></tr><tr><td>最高</td><td>1,070</td></tr>")
	b.WriteString("<tr><td>最低</td><td>1,045</td></tr><tr><td>收盤</td><td>1,065</td></tr></table>")

	b.WriteString("<table><tr><th>日期</th><th>開盤</th><th>最高</th><th>最低</th><th>收盤</th><th>成交量</th></tr>")
	for i := 1; i <= 25; i++ {
		fmt.Fprintf(&b, "<tr><td>2025/08/%02d</td><td>1,050</td><td>1,070</td><td>1,045</td><td>1,065</td><td>35,000</td></tr>", i%28+1)
	}
	b.WriteString("</table>")

	b.WriteString("<table><tr><th>日期</th><th>100張以下持股比例</th><th>100-1000張</th><th>1000張以上</th><th>總股東人數</th></tr>")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&b, "<tr><td>2025/08/%02d</td><td>25.5%%</td><td>30.1%%</td><td>44.4%%</td><td>36,000</td></tr>", i%28+1)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func TestRecordOutcome_SuccessUsesFileModTime(t *testing.T) {
	cfg, p, ledgerStore, _ := testSetup(t)

	require.NoError(t, os.MkdirAll(cfg.OutputPath(), 0755))
	reportPath := cfg.OutputPath() + "/" + testStock.ReportFilename()
	require.NoError(t, os.WriteFile(reportPath, []byte("# report"), 0644))

	modTime := time.Date(2025, 8, 22, 9, 0, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(reportPath, modTime, modTime))

	require.NoError(t, p.RecordOutcome(testStock, true, 1))

	entry, found, err := ledgerStore.Find(testStock.ReportFilename())
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, entry.Success)
	assert.Equal(t, 1, entry.RetryCount)
	assert.Equal(t, models.FormatLedgerTime(modTime), entry.LastUpdateTime)
}

func TestRecordOutcome_NoFileRecordsSentinel(t *testing.T) {
	_, p, ledgerStore, _ := testSetup(t)

	require.NoError(t, p.RecordOutcome(testStock, false, 3))

	entry, found, err := ledgerStore.Find(testStock.ReportFilename())
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, entry.Success)
	assert.Equal(t, models.FailedSentinel, entry.LastUpdateTime)
	assert.True(t, entry.Failed())
}

func TestReextract_RebuildsReportFromSnapshot(t *testing.T) {
	_, p, _, snaps := testSetup(t)

	fetchedAt := time.Date(2025, 8, 22, 8, 0, 0, 0, time.Local)
	require.NoError(t, snaps.Save(&models.PageSnapshot{
		Code:      testStock.Code,
		URL:       "https://poorstock.com/stock/2330",
		HTML:      fixturePage(),
		Strategy:  "rendered",
		FetchedAt: fetchedAt,
	}))

	result, err := p.Reextract(testStock)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "rendered", string(result.Strategy))

	content, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# 台積電 2330 股價資訊")
	assert.Contains(t, string(content), "| 開盤 | 1,050 |")
	assert.Contains(t, string(content), "**抓取時間:** 2025-08-22 08:00:00")
}

func TestReextract_MissingSnapshot(t *testing.T) {
	_, p, _, _ := testSetup(t)

	_, err := p.Reextract(models.Stock{Code: "9999", Name: "nope"})
	assert.Error(t, err)
}
