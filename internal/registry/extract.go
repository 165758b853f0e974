package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate registry elements. The registry publishes no schema, so
// these are the only coupling to its markup.
type Selectors struct {
	SearchInput  string
	SearchButton string
	ResultRows   string
	DetailLink   string
	DetailPanel  string
	ValidUntil   string
}

// DefaultSelectors matches the registry's current search page.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchInput:  "#DocRegNo",
		SearchButton: ".fn-BtnDocRegNo",
		ResultRows:   "#resultTBody tr",
		DetailLink:   "a.fn-viewdetail",
		DetailPanel:  ".modal-dialog",
		ValidUntil:   "#license_valid",
	}
}

// Row is the positional content of one result row.
type Row struct {
	RegistrationNumber string
	FullName           string
	FatherName         string
	StatusText         string
}

// minResultCells is the number of positional columns a row must carry.
const minResultCells = 4

// validUntilLayouts are tried in order. Numeric dates are day-first.
var validUntilLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-01-02",
	"2-Jan-2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Extractor parses rendered registry markup into typed values.
type Extractor struct {
	selectors Selectors
	location  *time.Location
}

// NewExtractor creates an extractor. Dates are interpreted in loc; nil means
// UTC.
func NewExtractor(selectors Selectors, loc *time.Location) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	return &Extractor{selectors: selectors, location: loc}
}

// ResultRow parses the first result row of a rendered page. It returns the
// number of rows found; zero rows is not an error.
func (x *Extractor) ResultRow(markup string) (Row, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Row{}, 0, &ExtractionError{Stage: StageResultRow, Err: err}
	}

	rows := doc.Find(x.selectors.ResultRows)
	count := rows.Length()
	if count == 0 {
		return Row{}, 0, nil
	}

	cells := rows.First().Find("td").Map(func(_ int, s *goquery.Selection) string {
		return strings.TrimSpace(s.Text())
	})
	if len(cells) < minResultCells {
		return Row{}, count, &ExtractionError{
			Stage: StageResultRow,
			Err:   fmt.Errorf("expected at least %d cells, found %d", minResultCells, len(cells)),
		}
	}

	row := Row{
		RegistrationNumber: cells[0],
		FullName:           cells[1],
		FatherName:         cells[2],
		StatusText:         cells[3],
	}
	if row.RegistrationNumber == "" || row.FullName == "" {
		return Row{}, count, &ExtractionError{
			Stage: StageResultRow,
			Err:   fmt.Errorf("registration number or full name cell is empty"),
		}
	}
	return row, count, nil
}

// ValidUntil reads the license validity date from a rendered detail panel.
// A present but blank field yields nil; a missing or unreadable field is an
// ExtractionError.
func (x *Extractor) ValidUntil(markup string) (*time.Time, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &ExtractionError{Stage: StageDetail, Err: err}
	}

	field := doc.Find(x.selectors.ValidUntil)
	if field.Length() == 0 {
		return nil, &ExtractionError{Stage: StageDetail, Err: errMissingDate}
	}
	text := strings.Join(strings.Fields(field.First().Text()), " ")
	if text == "" {
		return nil, nil
	}

	t, err := ParseValidUntil(text, x.location)
	if err != nil {
		return nil, &ExtractionError{Stage: StageDetail, Err: err}
	}
	return &t, nil
}

// ParseValidUntil parses a registry date in loc.
func ParseValidUntil(text string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	text = strings.TrimSpace(text)
	for _, layout := range validUntilLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errUnparseable, text)
}
