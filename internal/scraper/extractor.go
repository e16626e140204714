package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// dataDateRe matches the site's "data as of" line, e.g.
// "資料日期：2025/08/22 收盤後更新".
var dataDateRe = regexp.MustCompile(`資料日期[：:\s]*\d{4}/\d{2}/\d{2}[^。]*?更新[。]?`)

// currentPriceKeys are the four named slots of the current-price table,
// in report order.
var currentPriceKeys = []string{"開盤", "最高", "最低", "收盤"}

// Extractor turns classified tables into an ExtractionBundle. Cell text is
// kept verbatim; rows that do not look like data rows are skipped rather
// than failing the whole table.
type Extractor struct {
	classifier *Classifier
	narrative  *narrativeExtractor
	logger     arbor.ILogger
}

func NewExtractor(cfg *common.Config) *Extractor {
	return &Extractor{
		classifier: NewClassifier(cfg),
		narrative:  newNarrativeExtractor(),
		logger:     common.GetLogger(),
	}
}

// Extract classifies the document's tables and pulls every record it can.
// A partially filled bundle is a valid return; the caller decides what a
// partial bundle means for the run.
func (e *Extractor) Extract(doc *goquery.Document) *models.ExtractionBundle {
	tables := e.classifier.ClassifyDocument(doc)
	if tables.LoadingCount > 0 {
		e.logger.Warn().Int("count", tables.LoadingCount).Msg("Tables still loading on page")
	}

	bundle := &models.ExtractionBundle{
		Title:         strings.TrimSpace(doc.Find("title").First().Text()),
		CurrentPrices: map[string]string{},
	}

	fullText := doc.Text()
	if m := dataDateRe.FindString(fullText); m != "" {
		bundle.DataDate = strings.TrimSpace(m)
	}

	if tables.Daily != nil {
		bundle.Daily = e.extractDaily(tables.Daily)
	}
	if tables.Ownership != nil {
		bundle.Ownership = e.extractOwnership(tables.Ownership)
	}
	e.extractCurrent(tables.Current, bundle)

	bundle.Narrative = e.narrative.extract(doc)

	e.logger.Debug().
		Int("current_fields", len(bundle.CurrentPrices)).
		Int("daily_rows", len(bundle.Daily)).
		Int("ownership_rows", len(bundle.Ownership)).
		Int("narrative_lines", len(bundle.Narrative)).
		Msg("Extraction finished")

	return bundle
}

// extractDaily reads OHLCV bars from the daily-series table. A row must
// have at least six cells, lead with a date and carry parseable open and
// close prices; anything else (ad rows, merged cells) is skipped.
func (e *Extractor) extractDaily(table *goquery.Selection) []models.PriceBar {
	var bars []models.PriceBar

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := cellTexts(row)
		if len(cells) < 6 || !dateRe.MatchString(cells[0]) {
			return
		}
		if !plausibleNumber(cells[1]) || !plausibleNumber(cells[4]) {
			return
		}
		bars = append(bars, models.PriceBar{
			Date:   cells[0],
			Open:   cells[1],
			High:   cells[2],
			Low:    cells[3],
			Close:  cells[4],
			Volume: cells[5],
		})
	})

	return bars
}

// extractOwnership reads weekly distribution rows. Five cells minimum,
// leading cell a date.
func (e *Extractor) extractOwnership(table *goquery.Selection) []models.OwnershipSnapshot {
	var snapshots []models.OwnershipSnapshot

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := cellTexts(row)
		if len(cells) < 5 || !dateRe.MatchString(cells[0]) {
			return
		}
		snapshots = append(snapshots, models.OwnershipSnapshot{
			Date:         cells[0],
			Small:        cells[1],
			Medium:       cells[2],
			Large:        cells[3],
			TotalHolders: cells[4],
		})
	})

	return snapshots
}

// extractCurrent fills the current-price slots from the dedicated summary
// table, then falls back to the newest daily bar when fewer than all four
// slots were found. The fallback covers pages that render the summary
// late but already carry the full history table.
func (e *Extractor) extractCurrent(table *goquery.Selection, bundle *models.ExtractionBundle) {
	if table != nil {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := cellTexts(row)
			if len(cells) < 2 {
				return
			}
			for _, key := range currentPriceKeys {
				if strings.Contains(cells[0], key) {
					bundle.CurrentPrices[key] = cells[1]
					break
				}
			}
		})
	}

	if len(bundle.CurrentPrices) < len(currentPriceKeys) && len(bundle.Daily) > 0 {
		newest := bundle.Daily[0]
		bundle.CurrentPrices = map[string]string{
			"開盤": newest.Open,
			"最高": newest.High,
			"最低": newest.Low,
			"收盤": newest.Close,
		}
		e.logger.Debug().Msg("Current prices taken from newest daily bar")
	}
}

// cellTexts returns the trimmed text of every td/th cell in a row.
func cellTexts(row *goquery.Selection) []string {
	var cells []string
	row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

// plausibleNumber reports whether a cell holds something that parses as a
// number once display formatting (thousands separators, percent signs) is
// stripped. The parsed value is never kept; cells stay verbatim.
func plausibleNumber(cell string) bool {
	cleaned := strings.NewReplacer(",", "", "%", "", "+", "").Replace(strings.TrimSpace(cell))
	if cleaned == "" {
		return false
	}
	_, err := decimal.NewFromString(cleaned)
	return err == nil
}
