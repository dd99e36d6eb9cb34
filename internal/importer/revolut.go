package importer

import (
	"io"

	"github.com/finoob/finoob/internal/model"
)

// RevolutAdapter normalizes Revolut account statement CSVs.
type RevolutAdapter struct{}

const (
	revolutDateLayout     = "2006-01-02 15:04:05"
	revolutColStarted     = "Started Date"
	revolutColDesc        = "Description"
	revolutColAmount      = "Amount"
	revolutColState       = "State"
	revolutColBalance     = "Balance"
	revolutStateCompleted = "COMPLETED"
)

func (a *RevolutAdapter) Bank() string     { return "revolut" }
func (a *RevolutAdapter) HasBalance() bool { return true }

func (a *RevolutAdapter) Read(r io.Reader) (*RawTable, error) {
	return readCSV(r, ',')
}

// Normalize keeps completed transactions only. Amount is signed: positive is
// a credit, negative a debit.
func (a *RevolutAdapter) Normalize(t *RawTable) ([]model.StatementRow, error) {
	cols, err := t.columns(a.Bank(), revolutColStarted, revolutColDesc, revolutColAmount, revolutColState, revolutColBalance)
	if err != nil {
		return nil, err
	}

	var rows []model.StatementRow
	for _, rec := range t.Rows {
		if cell(rec, cols[revolutColState]) != revolutStateCompleted {
			continue
		}

		row := model.StatementRow{
			Date:        parseDate(cell(rec, cols[revolutColStarted]), revolutDateLayout, "2006-01-02"),
			Description: cell(rec, cols[revolutColDesc]),
			Balance:     parseBalance(cell(rec, cols[revolutColBalance])),
		}
		amount := parseAmount(cell(rec, cols[revolutColAmount]))
		if amount.IsPositive() {
			row.Credit = amount
		} else {
			row.Debit = amount.Abs()
		}
		rows = append(rows, row)
	}
	return rows, nil
}
