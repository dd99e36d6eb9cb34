package model

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// StatementRow is a normalized bank export row, before it enters the ledger.
type StatementRow struct {
	Date        civil.Date // zero value when the source cell could not be parsed
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Balance     decimal.NullDecimal
	Category    string
	Label       string
}

// HasDate reports whether the row carries a usable date.
func (r StatementRow) HasDate() bool {
	return r.Date.IsValid()
}
