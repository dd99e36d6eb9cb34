// Package review reads and writes the CSV files a person edits between
// workflow steps: new statement rows before an import is saved, and ledger
// rows awaiting a category.
package review

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

// StatementRecord is one row of an import review file.
type StatementRecord struct {
	Date        string `csv:"date"`
	Description string `csv:"description"`
	Debit       string `csv:"debit"`
	Credit      string `csv:"credit"`
	Balance     string `csv:"balance"`
	Category    string `csv:"category"`
	Label       string `csv:"label"`
}

// TransactionRecord is one row of a categorization review file. Only
// category and label are read back as edits.
type TransactionRecord struct {
	TransactionID     string `csv:"transaction_id"`
	AccountID         string `csv:"account_id"`
	TransactionNumber string `csv:"transaction_number"`
	Date              string `csv:"date"`
	Description       string `csv:"description"`
	Debit             string `csv:"debit"`
	Credit            string `csv:"credit"`
	Category          string `csv:"category"`
	Label             string `csv:"label"`
}

// WriteStatementRows writes rows as an import review file.
func WriteStatementRows(w io.Writer, rows []model.StatementRow) error {
	records := make([]*StatementRecord, len(rows))
	for i, r := range rows {
		rec := &StatementRecord{
			Description: r.Description,
			Debit:       r.Debit.StringFixed(2),
			Credit:      r.Credit.StringFixed(2),
			Category:    r.Category,
			Label:       r.Label,
		}
		if r.HasDate() {
			rec.Date = r.Date.String()
		}
		if r.Balance.Valid {
			rec.Balance = r.Balance.Decimal.StringFixed(2)
		}
		records[i] = rec
	}
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing review file: %w", err)
	}
	return nil
}

// ReadStatementRows reads an edited import review file. A blank date is kept
// as a missing date so the save step can reject it; a malformed one is an
// error here.
func ReadStatementRows(r io.Reader) ([]model.StatementRow, error) {
	var records []*StatementRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("reading review file: %w", err)
	}

	rows := make([]model.StatementRow, 0, len(records))
	for i, rec := range records {
		row, err := rec.toRow()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (rec *StatementRecord) toRow() (model.StatementRow, error) {
	row := model.StatementRow{
		Description: strings.TrimSpace(rec.Description),
		Category:    strings.TrimSpace(rec.Category),
		Label:       strings.TrimSpace(rec.Label),
	}

	var err error
	if d := strings.TrimSpace(rec.Date); d != "" {
		if row.Date, err = civil.ParseDate(d); err != nil {
			return row, fmt.Errorf("parsing date %q: %w", rec.Date, err)
		}
	}
	if row.Debit, err = parseAmount("debit", rec.Debit); err != nil {
		return row, err
	}
	if row.Credit, err = parseAmount("credit", rec.Credit); err != nil {
		return row, err
	}
	if b := strings.TrimSpace(rec.Balance); b != "" {
		bal, err := decimal.NewFromString(b)
		if err != nil {
			return row, fmt.Errorf("parsing balance %q: %w", rec.Balance, err)
		}
		row.Balance = decimal.NewNullDecimal(bal)
	}
	return row, nil
}

// WriteTransactions writes ledger rows as a categorization review file.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	records := make([]*TransactionRecord, len(txns))
	for i, t := range txns {
		records[i] = &TransactionRecord{
			TransactionID:     t.TransactionID,
			AccountID:         t.AccountID,
			TransactionNumber: strconv.FormatInt(t.TransactionNumber, 10),
			Date:              t.Date.String(),
			Description:       t.Description,
			Debit:             t.Debit.StringFixed(2),
			Credit:            t.Credit.StringFixed(2),
			Category:          t.Category,
			Label:             t.Label,
		}
	}
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing review file: %w", err)
	}
	return nil
}

// ReadTransactions reads a categorization review file back into ledger rows
// carrying identity, category and label. Cells left blank read as "".
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	var records []*TransactionRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("reading review file: %w", err)
	}

	txns := make([]model.Transaction, 0, len(records))
	for i, rec := range records {
		n, err := strconv.ParseInt(strings.TrimSpace(rec.TransactionNumber), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing transaction_number %q: %w", i+2, rec.TransactionNumber, err)
		}
		txns = append(txns, model.Transaction{
			AccountID:         strings.TrimSpace(rec.AccountID),
			TransactionNumber: n,
			TransactionID:     rec.TransactionID,
			Description:       rec.Description,
			Category:          strings.TrimSpace(rec.Category),
			Label:             strings.TrimSpace(rec.Label),
		})
	}
	return txns, nil
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return d, nil
}
