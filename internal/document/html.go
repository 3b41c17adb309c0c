package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlHeadings = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}

func loadHTML(doc *RawDocument, data []byte) error {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	root.Find("h1,h2,h3,h4,h5,h6,p,li").Each(func(_ int, s *goquery.Selection) {
		if s.Closest("table").Length() > 0 {
			return
		}
		text := normalizeSpaces(s.Text())
		if text == "" {
			return
		}
		tag := goquery.NodeName(s)
		doc.Paragraphs = append(doc.Paragraphs, Paragraph{Text: text, Style: tag, HeadingLevel: htmlHeadings[tag]})
	})

	root.Find("table").Each(func(_ int, table *goquery.Selection) {
		if table.ParentsFiltered("table").Length() > 0 {
			return
		}
		var grid [][]string
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			if row.ParentsFiltered("table").First().Get(0) != table.Get(0) {
				return
			}
			var cells []string
			row.ChildrenFiltered("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, cell.Text())
			})
			grid = append(grid, cells)
		})
		if t, ok := newTable(tableTitle(table), grid); ok {
			doc.Tables = append(doc.Tables, t)
		}
	})
	return nil
}

// tableTitle is the caption, or the closest preceding heading.
func tableTitle(table *goquery.Selection) string {
	if c := normalizeSpaces(table.Find("caption").First().Text()); c != "" {
		return c
	}
	for s := table; s.Length() > 0 && goquery.NodeName(s) != "body"; s = s.Parent() {
		if h := s.PrevAllFiltered("h1,h2,h3,h4,h5,h6").First(); h.Length() > 0 {
			return strings.TrimSpace(normalizeSpaces(h.Text()))
		}
	}
	return ""
}
