package scraper

import (
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const (
	// narrativeWindow bounds how far past the section anchor the
	// narrative scan reads, in runes.
	narrativeWindow = 8000

	// narrativeMaxLines caps the emitted analysis lines.
	narrativeMaxLines = 50
)

// sectionHeadingTokens mark numbered analysis headings, e.g. "一、技術面".
var sectionHeadingTokens = []string{"一、", "二、", "三、", "四、"}

// priceLevelTokens mark lines quoting support/resistance/target levels.
var priceLevelTokens = []string{"支撐", "壓力", "目標"}

// narrativeExtractor pulls the free-text analysis commentary from a page.
// The commentary has no structural markup, so extraction is text-window
// based: find the section anchor, take a bounded window and keep the lines
// that look like prose or headings.
type narrativeExtractor struct {
	converter *md.Converter
}

func newNarrativeExtractor() *narrativeExtractor {
	return &narrativeExtractor{
		converter: md.NewConverter("", true, nil),
	}
}

// extract returns the analysis lines in report-ready markdown form.
// Returns nil when the page carries no analysis section.
func (n *narrativeExtractor) extract(doc *goquery.Document) []string {
	text := doc.Text()
	if body := doc.Find("body"); body.Length() > 0 {
		if converted := n.converter.Convert(body); converted != "" {
			text = converted
		}
	}

	anchor := strings.Index(text, "AI")
	if anchor <= 0 {
		return nil
	}

	section := text[anchor:]
	if utf8.RuneCountInString(section) > narrativeWindow {
		runes := []rune(section)
		section = string(runes[:narrativeWindow])
	}

	var lines []string
	for _, raw := range strings.Split(section, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		length := utf8.RuneCountInString(line)
		if length < 20 {
			continue
		}

		switch {
		case containsAny(line, sectionHeadingTokens):
			lines = append(lines, "\n### "+line+"\n")
		case strings.Contains(line, "元") && containsAny(line, priceLevelTokens):
			lines = append(lines, "\n**"+line+"**\n")
		case length > 30 && !skipNarrativeLine(line):
			lines = append(lines, line+"\n")
		}

		if len(lines) >= narrativeMaxLines {
			break
		}
	}

	return lines
}

// skipNarrativeLine filters link dumps and boilerplate footers.
func skipNarrativeLine(line string) bool {
	return strings.HasPrefix(line, "http") ||
		strings.HasPrefix(line, "www") ||
		strings.HasPrefix(line, "©")
}
