package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reimbursement is the nested link state of a ledger row.
//
// A consumed credit has IsReimbursement set and a back-reference in
// ToTransactionID. A debit that received credits has HasReimbursement set
// and owns List, which only ever grows.
type Reimbursement struct {
	IsReimbursement  bool
	HasReimbursement bool
	ToTransactionID  string
	LinkedAt         time.Time
	List             []ReimbursementEntry
}

// ReimbursementEntry records one credit applied to a debit.
type ReimbursementEntry struct {
	FromTransactionID string
	Amount            decimal.Decimal
	LinkedAt          time.Time
}

// Clone returns a deep copy.
func (r Reimbursement) Clone() Reimbursement {
	c := r
	if r.List != nil {
		c.List = make([]ReimbursementEntry, len(r.List))
		copy(c.List, r.List)
	}
	return c
}

// Total sums the amounts in List.
func (r Reimbursement) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.List {
		total = total.Add(e.Amount)
	}
	return total
}
