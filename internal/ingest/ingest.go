// Package ingest runs the statement import workflow: parse an export, find
// the rows the ledger has not seen, and append them with derived fields.
package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/categorize"
	"github.com/finoob/finoob/internal/id"
	"github.com/finoob/finoob/internal/importer"
	"github.com/finoob/finoob/internal/ledger"
	"github.com/finoob/finoob/internal/logging"
	"github.com/finoob/finoob/internal/model"
	"github.com/finoob/finoob/internal/reconcile"
)

// Accounts is the part of the account registry the import needs.
type Accounts interface {
	Get(id string) (model.Account, error)
	Bank(id string) (string, error)
	DisplayName(id string) string
	SetClosingBalance(id string, balance decimal.Decimal, at time.Time) error
}

// Rules supplies the current category rule set.
type Rules interface {
	RuleSet() (model.RuleSet, error)
}

// Service previews and saves statement imports.
type Service struct {
	accounts      Accounts
	rules         Rules
	store         ledger.Store
	adapters      *importer.Registry
	caseSensitive bool
	logger        logging.Logger

	// Now stamps ingested_at and the account's last_updated.
	Now func() time.Time
}

// NewService creates an import Service.
func NewService(accounts Accounts, rules Rules, store ledger.Store, adapters *importer.Registry, caseSensitive bool, logger logging.Logger) *Service {
	return &Service{
		accounts:      accounts,
		rules:         rules,
		store:         store,
		adapters:      adapters,
		caseSensitive: caseSensitive,
		logger:        logger,
		Now:           time.Now,
	}
}

// Preview is the result of reconciling an export against the ledger.
type Preview struct {
	Account model.Account
	Marker  *model.Transaction // last ledger row, nil on first import
	Rows    []model.StatementRow
	Outcome reconcile.Outcome
	Parsed  int // rows read from the export
}

// Warning reports that the marker was not found and every row is offered.
func (p *Preview) Warning() bool { return p.Outcome == reconcile.MarkerMissing }

// NothingNew reports that the ledger already holds every exported row.
func (p *Preview) NothingNew() bool { return len(p.Rows) == 0 }

// Preview parses src with the adapter for the account's bank and returns the
// rows newer than the ledger's last row, categorized and with a balance.
func (s *Service) Preview(ctx context.Context, accountID string, src io.Reader) (*Preview, error) {
	acct, err := s.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	bank, err := s.accounts.Bank(accountID)
	if err != nil {
		return nil, err
	}
	adapter := s.adapters.Get(bank)
	if adapter == nil {
		return nil, &importer.UnknownBankError{Bank: bank}
	}

	rows, err := s.adapters.Parse(bank, src)
	if err != nil {
		return nil, err
	}
	reconcile.SortChronological(rows)

	marker, err := s.store.LastTransaction(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("fetching last transaction for %s: %w", accountID, err)
	}

	res := reconcile.FindNew(rows, marker)
	fresh := res.New
	if !adapter.HasBalance() {
		fresh = reconcile.ReconstructBalance(fresh, reconcile.SeedBalance(marker))
	}

	rs, err := s.rules.RuleSet()
	if err != nil {
		return nil, err
	}
	fresh = categorize.NewEngine(rs, s.caseSensitive).Apply(fresh)

	log := s.logger.WithFields(
		logging.F(logging.FieldAccountID, accountID),
		logging.F(logging.FieldBank, bank),
	)
	if res.Warning() {
		log.Warn("Last ledger transaction not found in export; offering every row",
			logging.F(logging.FieldCount, len(fresh)))
	} else {
		log.Info("Previewed import",
			logging.F(logging.FieldCount, len(fresh)),
			logging.F(logging.FieldReason, res.Outcome.String()))
	}

	return &Preview{
		Account: acct,
		Marker:  marker,
		Rows:    fresh,
		Outcome: res.Outcome,
		Parsed:  len(rows),
	}, nil
}

// SaveResult reports what Save wrote. The follow-up steps are best-effort:
// their errors do not undo the insert.
type SaveResult struct {
	Transactions []model.Transaction
	RefreshErr   error // net-worth refresh
	BalanceErr   error // closing balance update in the account registry
}

// Save numbers rows from the account's current maximum, derives the ledger
// fields and appends them in one insert. It then refreshes net worth and
// records the last row's balance as the account's closing balance.
func (s *Service) Save(ctx context.Context, accountID string, rows []model.StatementRow) (*SaveResult, error) {
	if len(rows) == 0 {
		return &SaveResult{}, nil
	}

	if _, err := s.accounts.Get(accountID); err != nil {
		return nil, err
	}

	// Row numbers follow the caller's order, which is the review file's.
	var undated ledger.ValidationErrors
	for i, r := range rows {
		if !r.HasDate() {
			undated = append(undated, ledger.ValidationError{
				Invariant:     ledger.InvariantDate,
				TransactionID: fmt.Sprintf("row %d", i+1),
				Description:   fmt.Sprintf("%q has no date", r.Description),
			})
		}
	}
	if len(undated) > 0 {
		return nil, undated
	}

	sorted := make([]model.StatementRow, len(rows))
	copy(sorted, rows)
	reconcile.SortChronological(sorted)

	current, err := s.store.MaxTransactionNumber(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("fetching max transaction number for %s: %w", accountID, err)
	}

	now := s.Now().UTC()
	name := s.accounts.DisplayName(accountID)

	txns := make([]model.Transaction, len(sorted))
	for i, r := range sorted {
		n := current + int64(i) + 1
		txns[i] = model.Transaction{
			AccountID:         accountID,
			Account:           name,
			TransactionNumber: n,
			TransactionID:     id.FormatTransactionID(accountID, n),
			Date:              r.Date,
			Year:              r.Date.Year,
			Month:             id.FormatMonth(r.Date),
			Description:       r.Description,
			Debit:             r.Debit,
			Credit:            r.Credit,
			Balance:           r.Balance,
			Category:          r.Category,
			Label:             r.Label,
			Type:              model.Classify(r.Debit, r.Credit),
			IngestedAt:        now,
		}
	}

	if err := s.store.Insert(ctx, accountID, txns); err != nil {
		return nil, fmt.Errorf("saving %d transactions for %s: %w", len(txns), accountID, err)
	}

	log := s.logger.WithField(logging.FieldAccountID, accountID)
	log.Info("Saved transactions", logging.F(logging.FieldCount, len(txns)))

	result := &SaveResult{Transactions: txns}
	if err := s.store.RefreshNetWorth(ctx); err != nil {
		result.RefreshErr = err
		log.WithError(err).Warn("Transactions saved but net worth refresh failed")
	}

	last := txns[len(txns)-1]
	if last.Balance.Valid {
		if err := s.accounts.SetClosingBalance(accountID, last.Balance.Decimal, now); err != nil {
			result.BalanceErr = err
			log.WithError(err).Warn("Transactions saved but closing balance update failed")
		}
	}
	return result, nil
}
