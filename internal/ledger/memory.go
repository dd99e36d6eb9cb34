package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

// uncategorizedPlaceholder is the category value the ledger treats as unset.
const uncategorizedPlaceholder = "TBD"

// MemoryStore is an in-process Store. Writes are serialized by a mutex, so
// numbering checks and links are race-free within one process.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string][]model.Transaction // ordered by transaction_number
	netWorth []NetWorthSnapshot

	// Now stamps last_updated on category edits.
	Now func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string][]model.Transaction),
		Now:      time.Now,
	}
}

// Load replaces the store's contents. Rows are grouped per account and
// ordered by transaction number.
func (m *MemoryStore) Load(txns []model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accounts = make(map[string][]model.Transaction)
	for _, t := range txns {
		m.accounts[t.AccountID] = append(m.accounts[t.AccountID], t.Clone())
	}
	for _, rows := range m.accounts {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].TransactionNumber < rows[j].TransactionNumber })
	}
}

// All returns a copy of every row, grouped by account id then number.
func (m *MemoryStore) All() []model.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []model.Transaction
	for _, id := range ids {
		for _, t := range m.accounts[id] {
			out = append(out, t.Clone())
		}
	}
	return out
}

// NetWorthHistory returns every snapshot taken by RefreshNetWorth.
func (m *MemoryStore) NetWorthHistory() []NetWorthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NetWorthSnapshot, len(m.netWorth))
	copy(out, m.netWorth)
	return out
}

// SetNetWorthHistory replaces the snapshot history.
func (m *MemoryStore) SetNetWorthHistory(history []NetWorthSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.netWorth = append([]NetWorthSnapshot(nil), history...)
}

func (m *MemoryStore) LastTransaction(_ context.Context, accountID string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.accounts[accountID]
	if len(rows) == 0 {
		return nil, nil
	}
	last := rows[len(rows)-1].Clone()
	return &last, nil
}

func (m *MemoryStore) MaxTransactionNumber(_ context.Context, accountID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxLocked(accountID), nil
}

func (m *MemoryStore) maxLocked(accountID string) int64 {
	rows := m.accounts[accountID]
	if len(rows) == 0 {
		return 0
	}
	return rows[len(rows)-1].TransactionNumber
}

func (m *MemoryStore) Get(_ context.Context, key model.Key) (model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.indexLocked(key)
	if i < 0 {
		return model.Transaction{}, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return m.accounts[key.AccountID][i].Clone(), nil
}

func (m *MemoryStore) indexLocked(key model.Key) int {
	rows := m.accounts[key.AccountID]
	i := sort.Search(len(rows), func(i int) bool { return rows[i].TransactionNumber >= key.Number })
	if i < len(rows) && rows[i].TransactionNumber == key.Number {
		return i
	}
	return -1
}

func (m *MemoryStore) Uncategorized(_ context.Context, accountID string) ([]model.Transaction, error) {
	return m.query(accountID, 0, func(t model.Transaction) bool {
		return t.Category == "" || t.Category == uncategorizedPlaceholder
	}), nil
}

func (m *MemoryStore) ReimbursementCandidates(_ context.Context, accountID, category string, after civil.Date) ([]model.Transaction, error) {
	return m.query(accountID, 0, func(t model.Transaction) bool {
		return t.Category == category &&
			t.AwaitingLink() &&
			t.Credit.IsPositive() &&
			t.Date.After(after)
	}), nil
}

func (m *MemoryStore) ExpenseCandidates(_ context.Context, accountID string, limit int) ([]model.Transaction, error) {
	return m.query(accountID, limit, func(t model.Transaction) bool {
		return t.Debit.IsPositive()
	}), nil
}

// query returns matching rows ordered by date then number, newest first.
func (m *MemoryStore) query(accountID string, limit int, keep func(model.Transaction) bool) []model.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Transaction
	for _, t := range m.accounts[accountID] {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].TransactionNumber > out[j].TransactionNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Insert appends txns after validating them against the current maximum.
func (m *MemoryStore) Insert(_ context.Context, accountID string, txns []model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if errs := ValidateInsert(accountID, m.maxLocked(accountID), txns); len(errs) > 0 {
		return errs
	}
	for _, t := range txns {
		m.accounts[accountID] = append(m.accounts[accountID], t.Clone())
	}
	return nil
}

func (m *MemoryStore) UpdateCategories(_ context.Context, updates []model.CategoryUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.Now()
	n := 0
	for _, u := range updates {
		i := m.indexLocked(u.Key())
		if i < 0 {
			continue
		}
		row := &m.accounts[u.AccountID][i]
		row.Category = u.Category
		row.Label = u.Label
		row.LastUpdated = now
		n++
	}
	return n, nil
}

// Link applies the reimbursement under the write lock, so both rows change
// together or not at all.
func (m *MemoryStore) Link(_ context.Context, req LinkRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ci := m.indexLocked(req.Credit)
	if ci < 0 {
		return fmt.Errorf("credit %s: %w", req.Credit, ErrNotFound)
	}
	di := m.indexLocked(req.Debit)
	if di < 0 {
		return fmt.Errorf("debit %s: %w", req.Debit, ErrNotFound)
	}

	credit := m.accounts[req.Credit.AccountID][ci]
	debit := m.accounts[req.Debit.AccountID][di]
	if !credit.Credit.Equal(req.Amount) {
		return fmt.Errorf("credit %s is now %s, not %s: %w",
			req.Credit, credit.Credit.StringFixed(2), req.Amount.StringFixed(2), ErrLinkConflict)
	}

	newCredit, newDebit, err := ApplyLink(credit, debit, req.LinkedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLinkConflict, err)
	}

	m.accounts[req.Credit.AccountID][ci] = newCredit
	m.accounts[req.Debit.AccountID][di] = newDebit
	return nil
}

// RefreshNetWorth records a snapshot of each account's last known balance.
func (m *MemoryStore) RefreshNetWorth(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := NetWorthSnapshot{ComputedAt: m.Now(), Total: decimal.Zero}
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rows := m.accounts[id]
		for i := len(rows) - 1; i >= 0; i-- {
			if rows[i].Balance.Valid {
				snap.Balances = append(snap.Balances, AccountBalance{AccountID: id, Balance: rows[i].Balance.Decimal})
				snap.Total = snap.Total.Add(rows[i].Balance.Decimal)
				break
			}
		}
	}
	m.netWorth = append(m.netWorth, snap)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
