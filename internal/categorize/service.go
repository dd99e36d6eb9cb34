package categorize

import (
	"context"
	"errors"
	"fmt"

	"github.com/finoob/finoob/internal/logging"
	"github.com/finoob/finoob/internal/model"
)

// ErrNoChanges is returned by SaveEdits when the edits change nothing.
var ErrNoChanges = errors.New("no changes detected")

// Store is the part of the ledger the categorization workflow needs.
type Store interface {
	Uncategorized(ctx context.Context, accountID string) ([]model.Transaction, error)
	UpdateCategories(ctx context.Context, updates []model.CategoryUpdate) (int, error)
}

// Service fetches rows awaiting a category and persists reviewed edits.
type Service struct {
	store  Store
	logger logging.Logger
}

// NewService creates a categorization Service.
func NewService(store Store, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Uncategorized returns ledger rows with an empty or "TBD" category, newest first.
func (s *Service) Uncategorized(ctx context.Context, accountID string) ([]model.Transaction, error) {
	txns, err := s.store.Uncategorized(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("fetching uncategorized transactions for %s: %w", accountID, err)
	}
	return txns, nil
}

// SaveEdits pushes only the changed rows to the ledger and returns how many
// were updated. It returns ErrNoChanges when there is nothing to persist.
func (s *Service) SaveEdits(ctx context.Context, original, edited []model.Transaction) (int, error) {
	changes := ChangedRows(original, edited)
	if len(changes) == 0 {
		s.logger.Info("No category changes to save")
		return 0, ErrNoChanges
	}

	n, err := s.store.UpdateCategories(ctx, changes)
	if err != nil {
		return 0, fmt.Errorf("updating %d categories: %w", len(changes), err)
	}

	s.logger.Info("Saved category changes",
		logging.F(logging.FieldCount, n),
		logging.F(logging.FieldOperation, "categorize"))
	return n, nil
}
