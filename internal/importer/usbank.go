package importer

import (
	"io"

	"github.com/finoob/finoob/internal/model"
)

// USBankAdapter normalizes US bank account CSV exports. They carry no
// balance column.
type USBankAdapter struct{}

const (
	usbankDateLayout = "02/01/2006"
	usbankColDate    = "Date"
	usbankColDesc    = "Description"
	usbankColOut     = "Money Out (€)"
	usbankColIn      = "Money In (€)"
)

func (a *USBankAdapter) Bank() string     { return "usbank" }
func (a *USBankAdapter) HasBalance() bool { return false }

func (a *USBankAdapter) Read(r io.Reader) (*RawTable, error) {
	return readCSV(r, ',')
}

func (a *USBankAdapter) Normalize(t *RawTable) ([]model.StatementRow, error) {
	cols, err := t.columns(a.Bank(), usbankColDate, usbankColDesc, usbankColOut, usbankColIn)
	if err != nil {
		return nil, err
	}

	rows := make([]model.StatementRow, 0, len(t.Rows))
	for _, rec := range t.Rows {
		rows = append(rows, model.StatementRow{
			Date:        parseDate(cell(rec, cols[usbankColDate]), usbankDateLayout),
			Description: cell(rec, cols[usbankColDesc]),
			Debit:       parseAmount(cell(rec, cols[usbankColOut])).Abs(),
			Credit:      parseAmount(cell(rec, cols[usbankColIn])),
		})
	}
	return rows, nil
}
