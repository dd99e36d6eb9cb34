package model

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/id"
)

// TransactionType is derived from which of debit/credit is non-zero.
type TransactionType string

const (
	TypeDebit   TransactionType = "Debit"
	TypeCredit  TransactionType = "Credit"
	TypeError   TransactionType = "Error"
	TypeUnknown TransactionType = "Unknown"
)

// Classify returns Error when both sides are non-zero and Unknown when both are zero.
func Classify(debit, credit decimal.Decimal) TransactionType {
	hasDebit := !debit.IsZero()
	hasCredit := !credit.IsZero()
	switch {
	case hasDebit && hasCredit:
		return TypeError
	case hasDebit:
		return TypeDebit
	case hasCredit:
		return TypeCredit
	default:
		return TypeUnknown
	}
}

// Key identifies a ledger row: (account_id, transaction_number).
type Key struct {
	AccountID string
	Number    int64
}

// String returns the composite id "account_id:number".
func (k Key) String() string {
	return id.FormatTransactionID(k.AccountID, k.Number)
}

// ParseKey parses a composite id back into a Key.
func ParseKey(s string) (Key, error) {
	accountID, n, err := id.ParseTransactionID(s)
	if err != nil {
		return Key{}, err
	}
	return Key{AccountID: accountID, Number: n}, nil
}

// Transaction is one ledger row.
type Transaction struct {
	AccountID         string
	Account           string // display name at ingestion time
	TransactionNumber int64
	TransactionID     string // "account_id:transaction_number"
	Date              civil.Date
	Year              int
	Month             string // "YYYY-MM"
	Description       string
	Debit             decimal.Decimal
	Credit            decimal.Decimal
	OriginalDebit     decimal.NullDecimal // set on first reimbursement link only
	Balance           decimal.NullDecimal
	Category          string
	Label             string
	Type              TransactionType
	Reimbursement     *Reimbursement
	IngestedAt        time.Time
	LastUpdated       time.Time
}

// Key returns the row's composite identity.
func (t Transaction) Key() Key {
	return Key{AccountID: t.AccountID, Number: t.TransactionNumber}
}

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	c := t
	if t.Reimbursement != nil {
		r := t.Reimbursement.Clone()
		c.Reimbursement = &r
	}
	return c
}

// ConsumedAsReimbursement reports whether this credit has been linked to a debit.
func (t Transaction) ConsumedAsReimbursement() bool {
	return t.Reimbursement != nil && t.Reimbursement.IsReimbursement
}

// AwaitingLink reports whether the row carries no reimbursement role yet. A
// reimbursement record with neither flag set counts as none.
func (t Transaction) AwaitingLink() bool {
	r := t.Reimbursement
	return r == nil || (!r.IsReimbursement && !r.HasReimbursement)
}

// ReimbursedAmount returns the sum of all credits applied to this debit.
func (t Transaction) ReimbursedAmount() decimal.Decimal {
	if t.Reimbursement == nil {
		return decimal.Zero
	}
	return t.Reimbursement.Total()
}

// CategoryUpdate carries an edited category/label for one ledger row.
type CategoryUpdate struct {
	AccountID         string
	TransactionNumber int64
	Category          string
	Label             string
}

// Key returns the identity of the row being updated.
func (u CategoryUpdate) Key() Key {
	return Key{AccountID: u.AccountID, Number: u.TransactionNumber}
}
