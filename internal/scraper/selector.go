package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Match holds the raw texts found on a page.
type Match struct {
	PriceText  string
	ChangeText string
}

// Selector locates the price of one metal in a parsed page.
type Selector interface {
	Name() string
	Locate(doc *goquery.Document) (Match, error)
}

// RowLabelSelector finds the table row whose first cell equals Label
// and reads the price from column PriceColumn. ChangeColumn < 0 means none.
type RowLabelSelector struct {
	ID           string
	Rows         string
	Label        string
	PriceColumn  int
	ChangeColumn int
}

func (s RowLabelSelector) Name() string { return s.ID }

func (s RowLabelSelector) Locate(doc *goquery.Document) (Match, error) {
	row := doc.Find(s.Rows).FilterFunction(func(_ int, r *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(r.Find("td").First().Text()), s.Label)
	}).First()
	if row.Length() == 0 {
		return Match{}, fmt.Errorf("no %q row labelled %q", s.Rows, s.Label)
	}

	cells := row.Find("td")
	if cells.Length() <= s.PriceColumn {
		return Match{}, fmt.Errorf("row %q has %d cells, price column %d missing", s.Label, cells.Length(), s.PriceColumn)
	}

	m := Match{PriceText: strings.TrimSpace(cells.Eq(s.PriceColumn).Text())}
	if s.ChangeColumn >= 0 && cells.Length() > s.ChangeColumn {
		m.ChangeText = strings.TrimSpace(cells.Eq(s.ChangeColumn).Text())
	}
	return m, nil
}

// StyledCellSelector finds a cell by a CSS attribute query and reads the
// price and change from nested elements.
type StyledCellSelector struct {
	ID     string
	Cell   string
	Price  string
	Change string
}

func (s StyledCellSelector) Name() string { return s.ID }

func (s StyledCellSelector) Locate(doc *goquery.Document) (Match, error) {
	cell := doc.Find(s.Cell).First()
	if cell.Length() == 0 {
		return Match{}, fmt.Errorf("element %q not found", s.Cell)
	}
	price := cell.Find(s.Price).First()
	if price.Length() == 0 {
		return Match{}, fmt.Errorf("element %q inside %q not found", s.Price, s.Cell)
	}

	m := Match{PriceText: strings.TrimSpace(price.Text())}
	if s.Change != "" {
		m.ChangeText = strings.TrimSpace(cell.Find(s.Change).First().Text())
	}
	return m, nil
}
