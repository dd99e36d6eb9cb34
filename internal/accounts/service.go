// Package accounts is the account registry: a file mapping account id to
// display name, bank code, closing balance and active flag.
package accounts

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/mapfile"
	"github.com/finoob/finoob/internal/model"
)

// ErrUnknownAccount is returned for ids missing from the registry.
var ErrUnknownAccount = errors.New("unknown account")

// accountDoc is one registry entry on disk.
type accountDoc struct {
	AccountName string          `json:"account_name" yaml:"account_name"`
	Bank        string          `json:"bank" yaml:"bank"`
	Balance     decimal.Decimal `json:"balance" yaml:"balance"`
	LastUpdated string          `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
	Active      *bool           `json:"active,omitempty" yaml:"active,omitempty"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Registry serves account lookups from a lazily loaded copy of the file.
type Registry struct {
	path string

	mu       sync.Mutex
	accounts []model.Account // file order
	loaded   bool
}

// NewRegistry returns a Registry for the file at path.
func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the registry file location.
func (r *Registry) Path() string { return r.path }

// Invalidate drops the cached registry so the next call rereads the file.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts, r.loaded = nil, false
}

func (r *Registry) loadLocked() error {
	if r.loaded {
		return nil
	}
	accts, err := Load(r.path)
	if err != nil {
		return err
	}
	r.accounts, r.loaded = accts, true
	return nil
}

// Get returns an account by id.
func (r *Registry) Get(id string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return model.Account{}, err
	}
	for _, a := range r.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Account{}, fmt.Errorf("%q: %w", id, ErrUnknownAccount)
}

// Bank returns the bank code that selects the account's statement adapter.
func (r *Registry) Bank(id string) (string, error) {
	a, err := r.Get(id)
	if err != nil {
		return "", err
	}
	if a.Bank == "" {
		return "", fmt.Errorf("account %q has no bank configured", id)
	}
	return a.Bank, nil
}

// DisplayName returns the account's name, or the id when it has none or is
// not registered.
func (r *Registry) DisplayName(id string) string {
	a, err := r.Get(id)
	if err != nil || a.Name == "" {
		return id
	}
	return a.Name
}

// All returns accounts in file order. Archived (inactive) accounts are
// included only when includeArchived is set.
func (r *Registry) All(includeArchived bool) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	out := make([]model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		if a.Active || includeArchived {
			out = append(out, a)
		}
	}
	return out, nil
}

// SetClosingBalance records a new balance and timestamp for id and writes the
// registry file immediately. The file is reread before the change and the
// cache is dropped after the write.
func (r *Registry) SetClosingBalance(id string, balance decimal.Decimal, at time.Time) error {
	r.Invalidate()
	if err := r.writeBalance(id, balance, at); err != nil {
		return err
	}
	r.Invalidate()
	return nil
}

func (r *Registry) writeBalance(id string, balance decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.loadLocked(); err != nil {
		return err
	}

	updated := make([]model.Account, len(r.accounts))
	copy(updated, r.accounts)
	found := false
	for i := range updated {
		if updated[i].ID == id {
			updated[i].Balance = balance
			updated[i].LastUpdated = at
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%q: %w", id, ErrUnknownAccount)
	}
	return Write(r.path, updated)
}

// TotalBalance sums the balances of accts.
func TotalBalance(accts []model.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accts {
		total = total.Add(a.Balance)
	}
	return total
}

// Load reads a registry file. A missing file is an empty registry. Entries
// without an active flag are treated as active.
func Load(path string) ([]model.Account, error) {
	entries, err := mapfile.Read(path)
	if err != nil {
		return nil, fmt.Errorf("loading accounts: %w", err)
	}

	accts := make([]model.Account, 0, len(entries))
	for _, e := range entries {
		var doc accountDoc
		if err := e.Decode(&doc); err != nil {
			return nil, fmt.Errorf("loading accounts: %q: %w", e.Key, err)
		}
		a := model.Account{
			ID:      e.Key,
			Name:    doc.AccountName,
			Bank:    doc.Bank,
			Balance: doc.Balance,
			Active:  doc.Active == nil || *doc.Active,
		}
		if doc.LastUpdated != "" {
			if a.LastUpdated, err = parseTime(doc.LastUpdated); err != nil {
				return nil, fmt.Errorf("loading accounts: %q: %w", e.Key, err)
			}
		}
		accts = append(accts, a)
	}
	return accts, nil
}

// Write saves accts to path in the given order.
func Write(path string, accts []model.Account) error {
	kvs := make([]mapfile.KV, 0, len(accts))
	for _, a := range accts {
		active := a.Active
		doc := accountDoc{
			AccountName: a.Name,
			Bank:        a.Bank,
			Balance:     a.Balance,
			Active:      &active,
		}
		if !a.LastUpdated.IsZero() {
			doc.LastUpdated = a.LastUpdated.Format(time.RFC3339)
		}
		kvs = append(kvs, mapfile.KV{Key: a.ID, Value: doc})
	}
	if err := mapfile.Write(path, kvs); err != nil {
		return fmt.Errorf("saving accounts: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing last_updated %q", s)
}
