package categorize

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finoob/finoob/internal/id"
	"github.com/finoob/finoob/internal/ledger"
	"github.com/finoob/finoob/internal/logging"
	"github.com/finoob/finoob/internal/model"
)

func ledgerRow(n int64, desc, category string) model.Transaction {
	d := civil.Date{Year: 2025, Month: 9, Day: int(n)}
	return model.Transaction{
		AccountID:         "ptsb",
		TransactionNumber: n,
		TransactionID:     id.FormatTransactionID("ptsb", n),
		Date:              d,
		Year:              d.Year,
		Month:             id.FormatMonth(d),
		Description:       desc,
		Debit:             decimal.NewFromInt(10),
		Credit:            decimal.Zero,
		Type:              model.TypeDebit,
		Category:          category,
	}
}

func newLedger(t *testing.T) *ledger.MemoryStore {
	t.Helper()
	m := ledger.NewMemoryStore()
	require.NoError(t, m.Insert(context.Background(), "ptsb", []model.Transaction{
		ledgerRow(1, "TESCO", "Groceries"),
		ledgerRow(2, "LUAS", ""),
		ledgerRow(3, "SPAR", "TBD"),
	}))
	return m
}

func TestService_SaveEditsPersistsChangedRows(t *testing.T) {
	ctx := context.Background()
	store := newLedger(t)
	logger := logging.NewMockLogger()
	svc := NewService(store, logger)

	orig, err := svc.Uncategorized(ctx, "ptsb")
	require.NoError(t, err)
	require.Len(t, orig, 2)

	edited := clone(orig)
	edited[0].Category = "Groceries" // SPAR, newest first
	edited[0].Label = "Spar"

	n, err := svc.SaveEdits(ctx, orig, edited)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := svc.Uncategorized(ctx, "ptsb")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "LUAS", left[0].Description)

	entries := logger.EntriesAt("INFO")
	require.NotEmpty(t, entries)
	count, ok := entries[len(entries)-1].FieldValue(logging.FieldCount)
	require.True(t, ok)
	assert.Equal(t, 1, count)
}

func TestService_SaveEditsWithoutChanges(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newLedger(t), logging.NewMockLogger())

	orig, err := svc.Uncategorized(ctx, "ptsb")
	require.NoError(t, err)

	_, err = svc.SaveEdits(ctx, orig, clone(orig))
	assert.ErrorIs(t, err, ErrNoChanges)
}

type failingStore struct{ err error }

func (f failingStore) Uncategorized(context.Context, string) ([]model.Transaction, error) {
	return nil, f.err
}

func (f failingStore) UpdateCategories(context.Context, []model.CategoryUpdate) (int, error) {
	return 0, f.err
}

func TestService_StoreErrorsAreWrapped(t *testing.T) {
	boom := errors.New("backend down")
	svc := NewService(failingStore{err: boom}, logging.NewMockLogger())

	_, err := svc.Uncategorized(context.Background(), "ptsb")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "ptsb")

	orig := fetched()
	edited := clone(orig)
	edited[1].Category = "Transport"
	_, err = svc.SaveEdits(context.Background(), orig, edited)
	assert.ErrorIs(t, err, boom)
}
