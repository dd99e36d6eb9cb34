// Package reimburse links reimbursement credits to the debits they repay.
package reimburse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/ledger"
	"github.com/finoob/finoob/internal/logging"
	"github.com/finoob/finoob/internal/model"
)

// Options configures which credits count as reimbursements.
type Options struct {
	Category     string     // category a credit must carry
	Cutover      civil.Date // only credits strictly after this date
	ExpenseLimit int        // most recent debits offered for linking
}

// Linker lists link candidates and applies links through the ledger.
type Linker struct {
	store  ledger.Store
	opts   Options
	logger logging.Logger

	// Now stamps linked_at.
	Now func() time.Time
}

// NewLinker creates a Linker.
func NewLinker(store ledger.Store, opts Options, logger logging.Logger) *Linker {
	return &Linker{store: store, opts: opts, logger: logger, Now: time.Now}
}

// Candidates returns unlinked reimbursement credits for an account, newest first.
func (l *Linker) Candidates(ctx context.Context, accountID string) ([]model.Transaction, error) {
	txns, err := l.store.ReimbursementCandidates(ctx, accountID, l.opts.Category, l.opts.Cutover)
	if err != nil {
		return nil, fmt.Errorf("fetching reimbursement candidates for %s: %w", accountID, err)
	}
	return txns, nil
}

// Expenses returns the account's most recent debits, optionally filtered by
// a case-insensitive description substring.
func (l *Linker) Expenses(ctx context.Context, accountID, search string) ([]model.Transaction, error) {
	txns, err := l.store.ExpenseCandidates(ctx, accountID, l.opts.ExpenseLimit)
	if err != nil {
		return nil, fmt.Errorf("fetching expenses for %s: %w", accountID, err)
	}

	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return txns, nil
	}
	var out []model.Transaction
	for _, t := range txns {
		if strings.Contains(strings.ToLower(t.Description), needle) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Impact is what a link would do to the debit.
type Impact struct {
	Amount        decimal.Decimal // credit applied
	Original      decimal.Decimal // debit before any reimbursement
	CurrentNet    decimal.Decimal // debit now
	FinalNet      decimal.Decimal // debit after this link
	ExistingCount int             // credits already applied
	ExistingSum   decimal.Decimal
}

// Negative reports whether the link would leave the debit below zero.
func (i Impact) Negative() bool { return i.FinalNet.IsNegative() }

// Preview computes the impact of applying credit to debit without writing.
func Preview(credit, debit model.Transaction) Impact {
	original := debit.Debit
	if debit.OriginalDebit.Valid {
		original = debit.OriginalDebit.Decimal
	}
	imp := Impact{
		Amount:      credit.Credit,
		Original:    original,
		CurrentNet:  debit.Debit,
		FinalNet:    debit.Debit.Sub(credit.Credit).Round(2),
		ExistingSum: debit.ReimbursedAmount(),
	}
	if debit.Reimbursement != nil {
		imp.ExistingCount = len(debit.Reimbursement.List)
	}
	return imp
}

// LinkError reports a failed link. The ledger is unchanged.
type LinkError struct {
	Credit string
	Debit  string
	Err    error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("linking %s to %s: %v (no changes applied)", e.Credit, e.Debit, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// Load fetches both rows of a prospective link by composite id.
func (l *Linker) Load(ctx context.Context, creditRef, debitRef string) (credit, debit model.Transaction, err error) {
	creditKey, err := model.ParseKey(creditRef)
	if err != nil {
		return credit, debit, &LinkError{Credit: creditRef, Debit: debitRef, Err: err}
	}
	debitKey, err := model.ParseKey(debitRef)
	if err != nil {
		return credit, debit, &LinkError{Credit: creditRef, Debit: debitRef, Err: err}
	}

	if credit, err = l.store.Get(ctx, creditKey); err != nil {
		return credit, debit, &LinkError{Credit: creditRef, Debit: debitRef, Err: err}
	}
	if debit, err = l.store.Get(ctx, debitKey); err != nil {
		return credit, debit, &LinkError{Credit: creditRef, Debit: debitRef, Err: err}
	}
	return credit, debit, nil
}

// Link applies the full amount of creditRef to debitRef. Both rows change in
// one atomic ledger write or not at all.
func (l *Linker) Link(ctx context.Context, creditRef, debitRef string) (Impact, error) {
	credit, debit, err := l.Load(ctx, creditRef, debitRef)
	if err != nil {
		return Impact{}, err
	}
	if err := ledger.ValidateLink(credit, debit); err != nil {
		return Impact{}, &LinkError{Credit: creditRef, Debit: debitRef, Err: err}
	}

	imp := Preview(credit, debit)
	req := ledger.LinkRequest{
		Credit:   credit.Key(),
		Debit:    debit.Key(),
		Amount:   credit.Credit,
		LinkedAt: l.Now().UTC(),
	}
	if err := l.store.Link(ctx, req); err != nil {
		return Impact{}, &LinkError{Credit: creditRef, Debit: debitRef, Err: err}
	}

	log := l.logger.WithFields(
		logging.F(logging.FieldTransactionID, debit.TransactionID),
		logging.F(logging.FieldAmount, imp.Amount.String()),
	)
	if imp.Negative() {
		log.Warn("Reimbursement exceeds expense; net amount is negative",
			logging.F(logging.FieldReason, imp.FinalNet.StringFixed(2)))
	} else {
		log.Info("Linked reimbursement")
	}
	return imp, nil
}
