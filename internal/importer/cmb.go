package importer

import (
	"io"

	"github.com/finoob/finoob/internal/model"
)

// CMBAdapter normalizes Crédit Mutuel de Bretagne CSV exports: semicolon
// separated, decimal comma, often Windows-1252 encoded, no balance column.
type CMBAdapter struct{}

const (
	cmbDateLayout = "02/01/2006"
	cmbColDate    = "Date operation"
	cmbColDebit   = "Debit"
	cmbColCredit  = "Credit"
	cmbColDesc    = "Libelle"
)

func (a *CMBAdapter) Bank() string     { return "cmb" }
func (a *CMBAdapter) HasBalance() bool { return false }

func (a *CMBAdapter) Read(r io.Reader) (*RawTable, error) {
	return readCSV(r, ';')
}

func (a *CMBAdapter) Normalize(t *RawTable) ([]model.StatementRow, error) {
	cols, err := t.columns(a.Bank(), cmbColDate, cmbColDebit, cmbColCredit, cmbColDesc)
	if err != nil {
		return nil, err
	}

	rows := make([]model.StatementRow, 0, len(t.Rows))
	for _, rec := range t.Rows {
		rows = append(rows, model.StatementRow{
			Date:        parseDate(cell(rec, cols[cmbColDate]), cmbDateLayout),
			Description: cell(rec, cols[cmbColDesc]),
			Debit:       parseAmount(commaDecimal(cell(rec, cols[cmbColDebit]))).Abs(),
			Credit:      parseAmount(commaDecimal(cell(rec, cols[cmbColCredit]))),
		})
	}
	return rows, nil
}
