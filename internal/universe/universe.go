// Package universe loads the reference list of securities to process.
package universe

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// Universe is the immutable set of stocks known for one run, in file order.
type Universe struct {
	stocks []models.Stock
	byCode map[string]models.Stock
}

// Load reads the stock universe CSV. The file carries at least two columns,
// code (代號) and display name (名稱); a missing file is a fatal error for
// any operation that needs the universe.
func Load(path string) (*Universe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stock universe file not found: %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate trailing columns
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse stock universe %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("stock universe %s is empty", path)
	}

	codeIdx, nameIdx := 0, 1
	start := 0
	if isHeader(rows[0]) {
		for i, col := range rows[0] {
			switch strings.TrimSpace(col) {
			case "代號", "code", "Code":
				codeIdx = i
			case "名稱", "name", "Name":
				nameIdx = i
			}
		}
		start = 1
	}

	u := &Universe{byCode: make(map[string]models.Stock)}
	for _, row := range rows[start:] {
		if len(row) <= codeIdx || len(row) <= nameIdx {
			continue
		}
		stock := models.Stock{
			Code: strings.TrimSpace(row[codeIdx]),
			Name: strings.TrimSpace(row[nameIdx]),
		}
		if stock.Code == "" || stock.Name == "" {
			continue
		}
		if _, dup := u.byCode[stock.Code]; dup {
			continue
		}
		u.stocks = append(u.stocks, stock)
		u.byCode[stock.Code] = stock
	}

	if len(u.stocks) == 0 {
		return nil, fmt.Errorf("stock universe %s contains no usable rows", path)
	}
	return u, nil
}

func isHeader(row []string) bool {
	for _, col := range row {
		col = strings.TrimSpace(col)
		if col == "代號" || col == "名稱" || strings.EqualFold(col, "code") || strings.EqualFold(col, "name") {
			return true
		}
	}
	return false
}

// Stocks returns all stocks in file order.
func (u *Universe) Stocks() []models.Stock {
	return u.stocks
}

// Find returns the stock for a code.
func (u *Universe) Find(code string) (models.Stock, bool) {
	s, ok := u.byCode[code]
	return s, ok
}

// Len returns the number of stocks in the universe.
func (u *Universe) Len() int {
	return len(u.stocks)
}
