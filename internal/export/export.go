// Package export renders persisted matches as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/listing-match/internal/matcher"
	"github.com/sells-group/listing-match/internal/model"
)

// SheetName is the worksheet name used by WriteXLSX.
const SheetName = "Matches"

// Header is the column order shared by both formats.
var Header = []string{"side", "listing_id", "request_id", "score", "created_at", "superseded_at", "reasons"}

// row flattens a match into Header order.
func row(m model.Match) []string {
	superseded := ""
	if m.SupersededAt != nil {
		superseded = m.SupersededAt.UTC().Format(time.RFC3339)
	}
	return []string{
		string(m.Side),
		m.ListingID,
		m.RequestID,
		strconv.Itoa(m.Score),
		m.CreatedAt.UTC().Format(time.RFC3339),
		superseded,
		strings.Join(matcher.FormatReasons(m.Reasons), "; "),
	}
}

// WriteCSV writes matches as CSV with a header row.
func WriteCSV(w io.Writer, matches []model.Match) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, m := range matches {
		if err := cw.Write(row(m)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", m.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteXLSX writes matches to a single-sheet workbook. The score column is
// numeric; everything else is text.
func WriteXLSX(w io.Writer, matches []model.Match) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	for _, m := range matches {
		r := sheet.AddRow()
		for i, v := range row(m) {
			cell := r.AddCell()
			if Header[i] == "score" {
				cell.SetInt(m.Score)
				continue
			}
			cell.SetString(v)
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}
