// Package csvstore keeps the ledger in a directory of CSV files: ledger.csv
// for transactions and net_worth.csv for balance snapshots.
package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/ledger"
	"github.com/finoob/finoob/internal/model"
)

const (
	// LedgerFile holds every transaction, ordered by account then number.
	LedgerFile = "ledger.csv"
	// NetWorthFile holds one row per account per snapshot.
	NetWorthFile = "net_worth.csv"

	// NetWorthHeader is the CSV header for net_worth.csv.
	NetWorthHeader = "computed_at,account_id,balance"
)

// Store is a ledger.Store backed by CSV files. Reads are served from memory;
// every write rewrites ledger.csv through a temp file and rename.
type Store struct {
	*ledger.MemoryStore

	dir string
	mu  sync.Mutex // serializes mutate-then-persist
}

var _ ledger.Store = (*Store)(nil)

// Open loads the ledger in dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}
	s := &Store{MemoryStore: ledger.NewMemoryStore(), dir: dir}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the directory the store persists to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) ledgerPath() string   { return filepath.Join(s.dir, LedgerFile) }
func (s *Store) netWorthPath() string { return filepath.Join(s.dir, NetWorthFile) }

func (s *Store) reload() error {
	txns, err := readLedger(s.ledgerPath())
	if err != nil {
		return err
	}
	history, err := readNetWorth(s.netWorthPath())
	if err != nil {
		return err
	}
	s.MemoryStore.Load(txns)
	s.MemoryStore.SetNetWorthHistory(history)
	return nil
}

func (s *Store) Insert(ctx context.Context, accountID string, txns []model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.MemoryStore.Insert(ctx, accountID, txns); err != nil {
		return err
	}
	return s.persist()
}

func (s *Store) UpdateCategories(ctx context.Context, updates []model.CategoryUpdate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.MemoryStore.UpdateCategories(ctx, updates)
	if err != nil || n == 0 {
		return n, err
	}
	if err := s.persist(); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Link(ctx context.Context, req ledger.LinkRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.MemoryStore.Link(ctx, req); err != nil {
		return err
	}
	return s.persist()
}

// RefreshNetWorth takes a snapshot and appends it to net_worth.csv. If the
// append fails the snapshot history is restored from disk.
func (s *Store) RefreshNetWorth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.MemoryStore.NetWorthHistory()
	if err := s.MemoryStore.RefreshNetWorth(ctx); err != nil {
		return err
	}
	history := s.MemoryStore.NetWorthHistory()

	if err := s.appendNetWorth(history[len(history)-1]); err != nil {
		onDisk, rerr := readNetWorth(s.netWorthPath())
		if rerr != nil {
			onDisk = before
		}
		s.MemoryStore.SetNetWorthHistory(onDisk)
		return err
	}
	return nil
}

func (s *Store) appendNetWorth(snap ledger.NetWorthSnapshot) error {
	path := s.netWorthPath()
	isNew := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening net worth: %w", err)
	}
	defer f.Close()

	if isNew {
		if _, err := fmt.Fprintln(f, NetWorthHeader); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	cw := csv.NewWriter(f)
	at := snap.ComputedAt.UTC().Format(timeFormat)
	for _, b := range snap.Balances {
		if err := cw.Write([]string{at, b.AccountID, b.Balance.String()}); err != nil {
			return fmt.Errorf("appending net worth: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("appending net worth: %w", err)
	}
	return nil
}

// persist rewrites ledger.csv. On failure the in-memory state is restored
// from disk so memory never runs ahead of the file.
func (s *Store) persist() error {
	if err := s.writeLedger(); err != nil {
		if rerr := s.reload(); rerr != nil {
			return fmt.Errorf("%w (reload: %v)", err, rerr)
		}
		return err
	}
	return nil
}

func (s *Store) writeLedger() error {
	tmp, err := os.CreateTemp(s.dir, "ledger-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTransactions(tmp, s.MemoryStore.All()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.ledgerPath()); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

func readLedger(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer f.Close()

	txns, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	return txns, nil
}

func readNetWorth(path string) ([]ledger.NetWorthSnapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening net worth %s: %w", path, err)
	}
	defer f.Close()

	history, err := ReadNetWorth(f)
	if err != nil {
		return nil, fmt.Errorf("reading net worth %s: %w", path, err)
	}
	return history, nil
}

// ReadNetWorth groups net_worth.csv rows into snapshots by computed_at, in
// file order.
func ReadNetWorth(r io.Reader) ([]ledger.NetWorthSnapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(strings.Split(NetWorthHeader, ","))

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading net worth CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	byTime := make(map[string]*ledger.NetWorthSnapshot)
	var order []string
	for i, rec := range records[1:] {
		at, err := time.Parse(timeFormat, rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing computed_at %q: %w", i+2, rec[0], err)
		}
		bal, err := decimal.NewFromString(rec[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing balance %q: %w", i+2, rec[2], err)
		}
		snap, ok := byTime[rec[0]]
		if !ok {
			snap = &ledger.NetWorthSnapshot{ComputedAt: at, Total: decimal.Zero}
			byTime[rec[0]] = snap
			order = append(order, rec[0])
		}
		snap.Balances = append(snap.Balances, ledger.AccountBalance{AccountID: rec[1], Balance: bal})
		snap.Total = snap.Total.Add(bal)
	}

	out := make([]ledger.NetWorthSnapshot, 0, len(order))
	for _, at := range order {
		out = append(out, *byTime[at])
	}
	return out, nil
}
