package importer

import (
	"fmt"
	"io"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"

	"github.com/finoob/finoob/internal/model"
)

// PTSBAdapter normalizes Permanent TSB spreadsheet exports. The sheet opens
// with a block of account details; the transaction header sits on row 13
// and the last row is a closing summary.
type PTSBAdapter struct{}

const (
	ptsbHeaderRow   = 12 // zero-based
	ptsbFooterRows  = 1
	ptsbDateLayout  = "02/01/2006"
	ptsbColDate     = "Date"
	ptsbColDesc     = "Description"
	ptsbColOut      = "Money Out (€)"
	ptsbColIn       = "Money In (€)"
	ptsbColBalance  = "Balance (€)"
	ptsbSearchLimit = 40
)

func (a *PTSBAdapter) Bank() string     { return "ptsb" }
func (a *PTSBAdapter) HasBalance() bool { return true }

// Read loads the first sheet. Cells are returned raw, so dates formatted as
// dates arrive as spreadsheet serial numbers.
func (a *PTSBAdapter) Read(r io.Reader) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	header := headerIndex(rows)
	if header < 0 || header >= len(rows) {
		return &RawTable{}, nil
	}

	body := rows[header+1:]
	if len(body) >= ptsbFooterRows {
		body = body[:len(body)-ptsbFooterRows]
	}

	var data [][]string
	for _, rec := range body {
		if !isBlank(rec) {
			data = append(data, rec)
		}
	}
	return &RawTable{Header: rows[header], Rows: data}, nil
}

// headerIndex returns the fixed header row when it holds the date column,
// otherwise the first row that does. Exports with an extra banner line
// shift the header down.
func headerIndex(rows [][]string) int {
	hasDate := func(rec []string) bool {
		for _, c := range rec {
			if c == ptsbColDate {
				return true
			}
		}
		return false
	}
	if ptsbHeaderRow < len(rows) && hasDate(rows[ptsbHeaderRow]) {
		return ptsbHeaderRow
	}
	for i := 0; i < len(rows) && i < ptsbSearchLimit; i++ {
		if hasDate(rows[i]) {
			return i
		}
	}
	return ptsbHeaderRow
}

func (a *PTSBAdapter) Normalize(t *RawTable) ([]model.StatementRow, error) {
	cols, err := t.columns(a.Bank(), ptsbColDate, ptsbColDesc, ptsbColOut, ptsbColIn, ptsbColBalance)
	if err != nil {
		return nil, err
	}

	rows := make([]model.StatementRow, 0, len(t.Rows))
	for _, rec := range t.Rows {
		rows = append(rows, model.StatementRow{
			Date:        parsePTSBDate(cell(rec, cols[ptsbColDate])),
			Description: cell(rec, cols[ptsbColDesc]),
			Debit:       parseAmount(cell(rec, cols[ptsbColOut])).Abs(),
			Credit:      parseAmount(cell(rec, cols[ptsbColIn])),
			Balance:     parseBalance(cell(rec, cols[ptsbColBalance])),
		})
	}
	return rows, nil
}

// parsePTSBDate accepts dd/mm/yyyy text or a spreadsheet date serial.
func parsePTSBDate(s string) civil.Date {
	if d := parseDate(s, ptsbDateLayout); d.IsValid() {
		return d
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial <= 0 {
		return civil.Date{}
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return civil.Date{}
	}
	return civil.DateOf(t)
}
