// Package reconcile finds the statement rows a ledger has not seen yet and
// derives running balances for exports that lack them.
package reconcile

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

// Outcome classifies how the new rows were selected.
type Outcome int

const (
	// FirstImport means the account has no ledger history; every row is new.
	FirstImport Outcome = iota
	// MarkerFound means the ledger's last row was located in the statement.
	MarkerFound
	// MarkerMissing means the ledger's last row was not in the statement and
	// every row is treated as new.
	MarkerMissing
)

func (o Outcome) String() string {
	switch o {
	case FirstImport:
		return "first-import"
	case MarkerFound:
		return "marker-found"
	case MarkerMissing:
		return "marker-missing"
	default:
		return "unknown"
	}
}

// Result partitions a statement against the ledger's marker row.
type Result struct {
	New         []model.StatementRow
	Outcome     Outcome
	MarkerIndex int // position of the last matching row, -1 if none
}

// Warning reports whether the caller should warn about a possible re-import.
func (r Result) Warning() bool {
	return r.Outcome == MarkerMissing
}

// SortChronological sorts rows by date, ascending, keeping input order for
// equal dates. Rows without a date sort last.
func SortChronological(rows []model.StatementRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.HasDate() || !b.HasDate() {
			return a.HasDate() && !b.HasDate()
		}
		return a.Date.Before(b.Date)
	})
}

// FindNew returns the rows strictly after the last row equal to marker on
// (date, description, debit, credit). rows must already be in chronological
// order. A nil marker means the account has no history.
func FindNew(rows []model.StatementRow, marker *model.Transaction) Result {
	if marker == nil {
		return Result{New: rows, Outcome: FirstImport, MarkerIndex: -1}
	}

	last := -1
	for i, r := range rows {
		if matchesMarker(r, marker) {
			last = i
		}
	}

	if last < 0 {
		return Result{New: rows, Outcome: MarkerMissing, MarkerIndex: -1}
	}
	return Result{New: rows[last+1:], Outcome: MarkerFound, MarkerIndex: last}
}

// matchesMarker compares against the debit as exported. A linked
// reimbursement reduces the ledger debit, so original_debit wins when set.
func matchesMarker(r model.StatementRow, m *model.Transaction) bool {
	debit := m.Debit
	if m.OriginalDebit.Valid {
		debit = m.OriginalDebit.Decimal
	}
	return r.Date == m.Date &&
		r.Description == m.Description &&
		r.Debit.Equal(debit) &&
		r.Credit.Equal(m.Credit)
}

// ReconstructBalance returns a copy of rows with Balance set to the running
// total seed + credit - debit. rows must already be in chronological order.
func ReconstructBalance(rows []model.StatementRow, seed decimal.Decimal) []model.StatementRow {
	out := make([]model.StatementRow, len(rows))
	balance := seed
	for i, r := range rows {
		balance = balance.Add(r.Credit).Sub(r.Debit)
		r.Balance = decimal.NewNullDecimal(balance)
		out[i] = r
	}
	return out
}

// SeedBalance returns the marker's balance, or zero when there is no marker
// or it has no recorded balance.
func SeedBalance(marker *model.Transaction) decimal.Decimal {
	if marker == nil || !marker.Balance.Valid {
		return decimal.Zero
	}
	return marker.Balance.Decimal
}
