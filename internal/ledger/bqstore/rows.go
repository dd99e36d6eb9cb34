package bqstore

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

// numericScale is the fractional precision BigQuery NUMERIC carries.
const numericScale = 9

// decodeRow converts a result row into a Transaction. Nested RECORD columns
// arrive as map[string]bigquery.Value and repeated records as []bigquery.Value.
func decodeRow(row map[string]bigquery.Value) (model.Transaction, error) {
	t := model.Transaction{
		AccountID:     asString(row["account_id"]),
		Account:       asString(row["account"]),
		TransactionID: asString(row["transaction_id"]),
		Month:         asString(row["month"]),
		Description:   asString(row["description"]),
		Category:      asString(row["category"]),
		Label:         asString(row["label"]),
		Type:          model.TransactionType(asString(row["transaction_type"])),
		IngestedAt:    asTime(row["ingested_at"]),
		LastUpdated:   asTime(row["last_updated"]),
	}

	n, ok := row["transaction_number"].(int64)
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction_number: unexpected %T", row["transaction_number"])
	}
	t.TransactionNumber = n

	if d, ok := row["date"].(civil.Date); ok {
		t.Date = d
	}
	if y, ok := row["year"].(int64); ok {
		t.Year = int(y)
	}

	var err error
	if t.Debit, err = asDecimal("debit", row["debit"]); err != nil {
		return model.Transaction{}, err
	}
	if t.Credit, err = asDecimal("credit", row["credit"]); err != nil {
		return model.Transaction{}, err
	}
	if t.OriginalDebit, err = asNullDecimal("original_debit", row["original_debit"]); err != nil {
		return model.Transaction{}, err
	}
	if t.Balance, err = asNullDecimal("balance", row["balance"]); err != nil {
		return model.Transaction{}, err
	}

	if rec, ok := row["reimbursement"].(map[string]bigquery.Value); ok {
		r, err := decodeReimbursement(rec)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("reimbursement: %w", err)
		}
		t.Reimbursement = &r
	}
	return t, nil
}

func decodeReimbursement(rec map[string]bigquery.Value) (model.Reimbursement, error) {
	r := model.Reimbursement{
		IsReimbursement:  asBool(rec["is_reimbursement"]),
		HasReimbursement: asBool(rec["has_reimbursement"]),
		ToTransactionID:  asString(rec["to_transaction_id"]),
		LinkedAt:         asTime(rec["linked_at"]),
	}
	list, _ := rec["reimbursement_list"].([]bigquery.Value)
	for i, v := range list {
		entry, ok := v.(map[string]bigquery.Value)
		if !ok {
			return model.Reimbursement{}, fmt.Errorf("reimbursement_list[%d]: unexpected %T", i, v)
		}
		amount, err := asDecimal("amount", entry["amount"])
		if err != nil {
			return model.Reimbursement{}, fmt.Errorf("reimbursement_list[%d]: %w", i, err)
		}
		r.List = append(r.List, model.ReimbursementEntry{
			FromTransactionID: asString(entry["from_transaction_id"]),
			Amount:            amount,
			LinkedAt:          asTime(entry["linked_at"]),
		})
	}
	return r, nil
}

func asString(v bigquery.Value) string {
	s, _ := v.(string)
	return s
}

func asBool(v bigquery.Value) bool {
	b, _ := v.(bool)
	return b
}

func asTime(v bigquery.Value) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asNullDecimal(field string, v bigquery.Value) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := asDecimal(field, v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// asDecimal accepts NUMERIC (*big.Rat) and FLOAT64 columns. NULL reads as zero.
func asDecimal(field string, v bigquery.Value) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case *big.Rat:
		if x == nil {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(x.FloatString(numericScale))
	case float64:
		return decimal.NewFromFloat(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%s %q: %w", field, x, err)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("%s: unexpected %T", field, v)
	}
}

// jsonRow is the newline-delimited JSON shape used by load jobs.
type jsonRow struct {
	AccountID         string             `json:"account_id"`
	Account           string             `json:"account,omitempty"`
	TransactionNumber int64              `json:"transaction_number"`
	TransactionID     string             `json:"transaction_id"`
	Date              string             `json:"date"`
	Year              int                `json:"year"`
	Month             string             `json:"month"`
	Description       string             `json:"description"`
	Debit             string             `json:"debit"`
	Credit            string             `json:"credit"`
	OriginalDebit     *string            `json:"original_debit"`
	Balance           *string            `json:"balance"`
	Category          string             `json:"category"`
	Label             string             `json:"label"`
	TransactionType   string             `json:"transaction_type"`
	Reimbursement     *jsonReimbursement `json:"reimbursement"`
	IngestedAt        *string            `json:"ingested_at"`
	LastUpdated       *string            `json:"last_updated"`
}

type jsonReimbursement struct {
	IsReimbursement  bool        `json:"is_reimbursement"`
	HasReimbursement bool        `json:"has_reimbursement"`
	ToTransactionID  *string     `json:"to_transaction_id"`
	LinkedAt         *string     `json:"linked_at"`
	List             []jsonEntry `json:"reimbursement_list"`
}

type jsonEntry struct {
	FromTransactionID string `json:"from_transaction_id"`
	Amount            string `json:"amount"`
	LinkedAt          string `json:"linked_at"`
}

// encodeRows renders txns as newline-delimited JSON.
func encodeRows(txns []model.Transaction) ([]byte, error) {
	var out []byte
	for _, t := range txns {
		b, err := json.Marshal(toJSONRow(t))
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", t.TransactionID, err)
		}
		out = append(out, b...)
		out = append(out, '\n')
	}
	return out, nil
}

func toJSONRow(t model.Transaction) jsonRow {
	row := jsonRow{
		AccountID:         t.AccountID,
		Account:           t.Account,
		TransactionNumber: t.TransactionNumber,
		TransactionID:     t.TransactionID,
		Date:              t.Date.String(),
		Year:              t.Year,
		Month:             t.Month,
		Description:       t.Description,
		Debit:             t.Debit.String(),
		Credit:            t.Credit.String(),
		OriginalDebit:     nullDecimalString(t.OriginalDebit),
		Balance:           nullDecimalString(t.Balance),
		Category:          t.Category,
		Label:             t.Label,
		TransactionType:   string(t.Type),
		IngestedAt:        timeString(t.IngestedAt),
		LastUpdated:       timeString(t.LastUpdated),
	}
	if r := t.Reimbursement; r != nil {
		jr := &jsonReimbursement{
			IsReimbursement:  r.IsReimbursement,
			HasReimbursement: r.HasReimbursement,
			LinkedAt:         timeString(r.LinkedAt),
			List:             []jsonEntry{},
		}
		if r.ToTransactionID != "" {
			id := r.ToTransactionID
			jr.ToTransactionID = &id
		}
		for _, e := range r.List {
			jr.List = append(jr.List, jsonEntry{
				FromTransactionID: e.FromTransactionID,
				Amount:            e.Amount.String(),
				LinkedAt:          e.LinkedAt.UTC().Format(time.RFC3339Nano),
			})
		}
		row.Reimbursement = jr
	}
	return row
}

func nullDecimalString(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func timeString(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
