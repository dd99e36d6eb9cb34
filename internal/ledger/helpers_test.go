package ledger

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/id"
	"github.com/finoob/finoob/internal/model"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// txn builds a row with consistent derived fields.
func txn(account string, n int64, d civil.Date, desc, debit, credit string) model.Transaction {
	db, cr := dec(debit), dec(credit)
	return model.Transaction{
		AccountID:         account,
		TransactionNumber: n,
		TransactionID:     id.FormatTransactionID(account, n),
		Date:              d,
		Year:              d.Year,
		Month:             id.FormatMonth(d),
		Description:       desc,
		Debit:             db,
		Credit:            cr,
		Type:              model.Classify(db, cr),
	}
}
