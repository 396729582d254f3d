package mackolik

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseFixtureTable extracts the td text of every row of a fixture table.
// Rows without td cells are dropped; header and short rows are left for
// fixture.ParseRow to classify.
func ParseFixtureTable(html string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var rows [][]string
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered("td")
		if tds.Length() == 0 {
			return
		}
		cells := make([]string, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cellText(td))
		})
		rows = append(rows, cells)
	})
	return rows, nil
}

// cellText joins the trimmed text nodes under s with single spaces.
func cellText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(s)
	return strings.Join(parts, " ")
}
