package report

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// reportDateCellRe matches a date-typed table cell in a saved report.
var reportDateCellRe = regexp.MustCompile(`\d{4}/\d{2}/\d{2}`)

// Inspection is the static completeness check of a previously written
// report. It mirrors the live validator's intent against the rendered
// markdown instead of the fetched HTML, so stale or half-loaded reports
// can be found without refetching.
type Inspection struct {
	Exists          bool
	HasPrices       bool
	HasDaily        bool
	HasOwnership    bool
	LoadingMessages bool
	ModTime         time.Time
}

// Complete requires at least two of the three data sections. Ownership
// refreshes weekly and occasionally lags the price data; one lagging
// section should not force a refetch on its own.
func (i Inspection) Complete() bool {
	count := 0
	for _, ok := range []bool{i.HasPrices, i.HasDaily, i.HasOwnership} {
		if ok {
			count++
		}
	}
	return count >= 2
}

// Age returns the time since the report was last written.
func (i Inspection) Age(now time.Time) time.Duration {
	return now.Sub(i.ModTime)
}

// Inspector parses saved reports with the same table-aware markdown
// grammar the reports are written in.
type Inspector struct {
	md goldmark.Markdown
}

func NewInspector() *Inspector {
	return &Inspector{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Inspect reads and analyzes the report at path. A missing file returns
// a zero Inspection with Exists=false; a present but unreadable file is
// treated the same way so the caller reprocesses it.
func (ins *Inspector) Inspect(path string) Inspection {
	info, err := os.Stat(path)
	if err != nil {
		return Inspection{}
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return Inspection{}
	}

	inspection := Inspection{
		Exists:  true,
		ModTime: info.ModTime(),
	}

	content := string(source)
	inspection.LoadingMessages = strings.Contains(content, "載入中")

	doc := ins.md.Parser().Parse(text.NewReader(source))
	ins.walkTables(doc, source, &inspection)

	return inspection
}

// walkTables visits every table in the document and decides which data
// section each one represents from its own cells, the same content-driven
// approach extraction applies to the source page.
func (ins *Inspector) walkTables(doc ast.Node, source []byte, inspection *Inspection) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != extast.KindTable {
			return ast.WalkContinue, nil
		}

		tableText := nodeText(n, source)

		switch {
		case strings.Contains(tableText, "持股比例") && strings.Contains(tableText, "%"):
			inspection.HasOwnership = true
		case strings.Contains(tableText, "成交量") && reportDateCellRe.MatchString(tableText):
			inspection.HasDaily = true
		case strings.Contains(tableText, "開盤") && strings.Contains(tableText, "收盤"):
			// The current-price table counts only when the slots hold
			// values rather than the "-" absence marker.
			if !hasEmptySlot(tableText) {
				inspection.HasPrices = true
			}
		}

		return ast.WalkSkipChildren, nil
	})
}

// hasEmptySlot reports whether any cell of the table held the "-"
// absence marker.
func hasEmptySlot(tableText string) bool {
	for _, field := range strings.Fields(tableText) {
		if field == "-" {
			return true
		}
	}
	return false
}

// nodeText reconstructs the raw source text spanned by a block node.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
			b.WriteString(" ")
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
