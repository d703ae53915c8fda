// Package html reads the first <table> of an HTML document as delimited
// records, so exported reports can be loaded like the comma-delimited inputs.
package html

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTable is returned when the document has no <table> with rows.
var ErrNoTable = errors.New("no table found")

// ReadTable returns the header and data rows of the first table in r.
//
// The header comes from the <th> cells of the first row that has any, else
// from the first row. Cell text is whitespace-trimmed. A data row whose cell
// count differs from the header is returned as is; callers validate widths.
func ReadTable(r io.Reader) (header []string, rows [][]string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, nil, ErrNoTable
	}

	var all [][]string
	headerIdx := -1
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		// Skip rows of nested tables.
		if tr.Closest("table").Get(0) != table.Get(0) {
			return
		}
		cells := tr.Children().Filter("th, td")
		if cells.Length() == 0 {
			return
		}
		if headerIdx < 0 && tr.Children().Filter("th").Length() > 0 {
			headerIdx = len(all)
		}
		rec := make([]string, 0, cells.Length())
		cells.Each(func(_ int, c *goquery.Selection) {
			rec = append(rec, strings.TrimSpace(c.Text()))
		})
		all = append(all, rec)
	})

	if len(all) == 0 {
		return nil, nil, ErrNoTable
	}
	if headerIdx < 0 {
		headerIdx = 0
	}
	return all[headerIdx], all[headerIdx+1:], nil
}
