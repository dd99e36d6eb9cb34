package csvstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

// Header is the CSV header for ledger.csv.
const Header = "account_id,account,transaction_number,transaction_id,date,year,month,description,debit,credit,original_debit,balance,category,label,transaction_type,reimbursement,ingested_at,last_updated"

const (
	numFields      = 18
	timeFormat     = time.RFC3339Nano
	colAcctID      = 0
	colAccount     = 1
	colNumber      = 2
	colTxnID       = 3
	colDate        = 4
	colYear        = 5
	colMonth       = 6
	colDesc        = 7
	colDebit       = 8
	colCredit      = 9
	colOrigDebit   = 10
	colBalance     = 11
	colCategory    = 12
	colLabel       = 13
	colType        = 14
	colReimb       = 15
	colIngestedAt  = 16
	colLastUpdated = 17
)

// reimbursementJSON is the on-disk shape of the nested reimbursement record.
type reimbursementJSON struct {
	IsReimbursement  bool                     `json:"is_reimbursement"`
	HasReimbursement bool                     `json:"has_reimbursement"`
	ToTransactionID  string                   `json:"to_transaction_id,omitempty"`
	LinkedAt         *time.Time               `json:"linked_at,omitempty"`
	List             []reimbursementEntryJSON `json:"reimbursement_list,omitempty"`
}

type reimbursementEntryJSON struct {
	FromTransactionID string          `json:"from_transaction_id"`
	Amount            decimal.Decimal `json:"amount"`
	LinkedAt          time.Time       `json:"linked_at"`
}

// ReadTransactions reads all rows from a ledger.csv reader.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var txns []model.Transaction
	for i, rec := range records[1:] {
		t, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txns = append(txns, t)
	}
	return txns, nil
}

// WriteTransactions writes txns to a ledger.csv writer, header included.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txns {
		row, err := MarshalTransaction(t)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(t model.Transaction) ([]string, error) {
	row := make([]string, numFields)
	row[colAcctID] = t.AccountID
	row[colAccount] = t.Account
	row[colNumber] = strconv.FormatInt(t.TransactionNumber, 10)
	row[colTxnID] = t.TransactionID
	if t.Date.IsValid() {
		row[colDate] = t.Date.String()
	}
	if t.Year != 0 {
		row[colYear] = strconv.Itoa(t.Year)
	}
	row[colMonth] = t.Month
	row[colDesc] = t.Description
	row[colDebit] = t.Debit.String()
	row[colCredit] = t.Credit.String()
	if t.OriginalDebit.Valid {
		row[colOrigDebit] = t.OriginalDebit.Decimal.String()
	}
	if t.Balance.Valid {
		row[colBalance] = t.Balance.Decimal.String()
	}
	row[colCategory] = t.Category
	row[colLabel] = t.Label
	row[colType] = string(t.Type)

	if t.Reimbursement != nil {
		b, err := json.Marshal(toJSON(*t.Reimbursement))
		if err != nil {
			return nil, fmt.Errorf("encoding reimbursement: %w", err)
		}
		row[colReimb] = string(b)
	}

	row[colIngestedAt] = formatTime(t.IngestedAt)
	row[colLastUpdated] = formatTime(t.LastUpdated)
	return row, nil
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	t := model.Transaction{
		AccountID:     record[colAcctID],
		Account:       record[colAccount],
		TransactionID: record[colTxnID],
		Month:         record[colMonth],
		Description:   record[colDesc],
		Category:      record[colCategory],
		Label:         record[colLabel],
		Type:          model.TransactionType(record[colType]),
	}

	var err error
	if t.TransactionNumber, err = strconv.ParseInt(record[colNumber], 10, 64); err != nil {
		return model.Transaction{}, fmt.Errorf("parsing transaction_number %q: %w", record[colNumber], err)
	}
	if record[colDate] != "" {
		if t.Date, err = civil.ParseDate(record[colDate]); err != nil {
			return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
		}
	}
	if record[colYear] != "" {
		if t.Year, err = strconv.Atoi(record[colYear]); err != nil {
			return model.Transaction{}, fmt.Errorf("parsing year %q: %w", record[colYear], err)
		}
	}
	if t.Debit, err = parseDecimal("debit", record[colDebit]); err != nil {
		return model.Transaction{}, err
	}
	if t.Credit, err = parseDecimal("credit", record[colCredit]); err != nil {
		return model.Transaction{}, err
	}
	if t.OriginalDebit, err = parseNullDecimal("original_debit", record[colOrigDebit]); err != nil {
		return model.Transaction{}, err
	}
	if t.Balance, err = parseNullDecimal("balance", record[colBalance]); err != nil {
		return model.Transaction{}, err
	}

	if record[colReimb] != "" {
		var rj reimbursementJSON
		if err := json.Unmarshal([]byte(record[colReimb]), &rj); err != nil {
			return model.Transaction{}, fmt.Errorf("parsing reimbursement: %w", err)
		}
		r := fromJSON(rj)
		t.Reimbursement = &r
	}

	if t.IngestedAt, err = parseTime("ingested_at", record[colIngestedAt]); err != nil {
		return model.Transaction{}, err
	}
	if t.LastUpdated, err = parseTime("last_updated", record[colLastUpdated]); err != nil {
		return model.Transaction{}, err
	}
	return t, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return d, nil
}

func parseNullDecimal(field, s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s %q: %w", field, s, err)
	}
	return t, nil
}

func toJSON(r model.Reimbursement) reimbursementJSON {
	out := reimbursementJSON{
		IsReimbursement:  r.IsReimbursement,
		HasReimbursement: r.HasReimbursement,
		ToTransactionID:  r.ToTransactionID,
	}
	if !r.LinkedAt.IsZero() {
		at := r.LinkedAt.UTC()
		out.LinkedAt = &at
	}
	for _, e := range r.List {
		out.List = append(out.List, reimbursementEntryJSON{
			FromTransactionID: e.FromTransactionID,
			Amount:            e.Amount,
			LinkedAt:          e.LinkedAt.UTC(),
		})
	}
	return out
}

func fromJSON(rj reimbursementJSON) model.Reimbursement {
	r := model.Reimbursement{
		IsReimbursement:  rj.IsReimbursement,
		HasReimbursement: rj.HasReimbursement,
		ToTransactionID:  rj.ToTransactionID,
	}
	if rj.LinkedAt != nil {
		r.LinkedAt = *rj.LinkedAt
	}
	for _, e := range rj.List {
		r.List = append(r.List, model.ReimbursementEntry{
			FromTransactionID: e.FromTransactionID,
			Amount:            e.Amount,
			LinkedAt:          e.LinkedAt,
		})
	}
	return r
}
