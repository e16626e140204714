package scraper

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/models"
)

// dateRe matches the date form used throughout the target site's tables.
var dateRe = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}`)

// PageTables holds the tables found in one document, keyed by role. A slot
// is nil when no table of that role was identified.
type PageTables struct {
	Current      *goquery.Selection
	Daily        *goquery.Selection
	Ownership    *goquery.Selection
	LoadingCount int
	UnknownCount int
}

// Classifier assigns a role to each table by inspecting its content. The
// site reorders and interleaves tables between visits, so position is
// never a signal; only row counts, header tokens and cell shapes are.
type Classifier struct {
	cfg     common.ClassifierConfig
	markers []string
}

func NewClassifier(cfg *common.Config) *Classifier {
	return &Classifier{
		cfg:     cfg.Classifier,
		markers: cfg.Validator.LoadingMarkers,
	}
}

// ClassifyDocument walks every table in the document and fills the role
// slots. The first table matching a role wins; later duplicates are left
// unclassified.
func (c *Classifier) ClassifyDocument(doc *goquery.Document) *PageTables {
	tables := &PageTables{}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		switch c.Classify(table) {
		case models.TableRoleLoading:
			tables.LoadingCount++
		case models.TableRoleDailyPrices:
			if tables.Daily == nil {
				tables.Daily = table
			}
		case models.TableRoleOwnership:
			if tables.Ownership == nil {
				tables.Ownership = table
			}
		case models.TableRoleCurrentPrices:
			if tables.Current == nil {
				tables.Current = table
			}
		default:
			tables.UnknownCount++
		}
	})

	return tables
}

// Classify determines the role of a single table. Checks run from the
// most to the least specific shape: loading shells first, then the large
// daily history, the mid-sized ownership distribution, and finally the
// small current-price summary.
func (c *Classifier) Classify(table *goquery.Selection) models.TableRole {
	text := table.Text()
	lower := strings.ToLower(text)
	rows := table.Find("tr")
	rowCount := rows.Length()

	for _, marker := range c.markers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return models.TableRoleLoading
		}
	}

	if rowCount > c.cfg.DailyMinRows &&
		containsAny(text, c.cfg.DateTokens) &&
		containsAny(text, c.cfg.OHLCTokens) &&
		c.hasDateRows(rows) {
		return models.TableRoleDailyPrices
	}

	if rowCount >= c.cfg.OwnershipMinRows && rowCount <= c.cfg.OwnershipMaxRows &&
		containsAny(text, c.cfg.OwnershipTokens) {
		return models.TableRoleOwnership
	}

	if rowCount <= c.cfg.CurrentMaxRows && containsAny(text, c.cfg.OHLCTokens) {
		return models.TableRoleCurrentPrices
	}

	return models.TableRoleUnknown
}

// hasDateRows reports whether any of the first data rows leads with a
// date cell. A price-history table always does; a layout table that
// merely mentions dates in prose does not.
func (c *Classifier) hasDateRows(rows *goquery.Selection) bool {
	found := false
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			return true // header row
		}
		if i > 3 {
			return false
		}
		first := strings.TrimSpace(row.Find("td").First().Text())
		if dateRe.MatchString(first) {
			found = true
			return false
		}
		return true
	})
	return found
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
