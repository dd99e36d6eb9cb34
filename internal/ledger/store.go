// Package ledger defines the transaction ledger boundary and enforces its
// invariants at write time.
package ledger

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("transaction not found")
	// ErrLinkConflict is returned when a link's rows changed after they were
	// fetched, or no longer satisfy the link preconditions.
	ErrLinkConflict = errors.New("reimbursement link conflict")
)

// Store is the ledger: an append-mostly table of transactions keyed by
// (account_id, transaction_number).
type Store interface {
	// LastTransaction returns the account's most recently numbered row, or
	// nil when the account has no history.
	LastTransaction(ctx context.Context, accountID string) (*model.Transaction, error)
	// MaxTransactionNumber returns 0 when the account has no history.
	MaxTransactionNumber(ctx context.Context, accountID string) (int64, error)
	Get(ctx context.Context, key model.Key) (model.Transaction, error)
	// Uncategorized returns rows whose category is empty or "TBD", newest first.
	Uncategorized(ctx context.Context, accountID string) ([]model.Transaction, error)
	// ReimbursementCandidates returns unlinked credits in category dated
	// strictly after the cutover, newest first.
	ReimbursementCandidates(ctx context.Context, accountID, category string, after civil.Date) ([]model.Transaction, error)
	// ExpenseCandidates returns up to limit debits, newest first.
	ExpenseCandidates(ctx context.Context, accountID string, limit int) ([]model.Transaction, error)
	// Insert appends rows as a single all-or-nothing write.
	Insert(ctx context.Context, accountID string, txns []model.Transaction) error
	// UpdateCategories sets category and label on existing rows and returns
	// the number of rows matched.
	UpdateCategories(ctx context.Context, updates []model.CategoryUpdate) (int, error)
	// Link applies a reimbursement to both rows atomically.
	Link(ctx context.Context, req LinkRequest) error
	// RefreshNetWorth recomputes the derived net-worth aggregate.
	RefreshNetWorth(ctx context.Context) error
	Close() error
}

// LinkRequest applies the full credit of Credit against Debit. Amount is the
// credit value the caller saw; the store rejects the link if it changed.
type LinkRequest struct {
	Credit   model.Key
	Debit    model.Key
	Amount   decimal.Decimal
	LinkedAt time.Time
}

// NetWorthSnapshot is the latest known balance of every account at a point in time.
type NetWorthSnapshot struct {
	ComputedAt time.Time
	Balances   []AccountBalance
	Total      decimal.Decimal
}

// AccountBalance is one account's closing balance within a snapshot.
type AccountBalance struct {
	AccountID string
	Balance   decimal.Decimal
}
