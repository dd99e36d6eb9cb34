package csvstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finoob/finoob/internal/id"
	"github.com/finoob/finoob/internal/ledger"
	"github.com/finoob/finoob/internal/model"
)

var stamp = time.Date(2025, 9, 30, 8, 15, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func txn(n int64, day int, desc, debit, credit, balance string) model.Transaction {
	d := civil.Date{Year: 2025, Month: 9, Day: day}
	db, cr := dec(debit), dec(credit)
	return model.Transaction{
		AccountID:         "ptsb",
		Account:           "PTSB Current",
		TransactionNumber: n,
		TransactionID:     id.FormatTransactionID("ptsb", n),
		Date:              d,
		Year:              d.Year,
		Month:             id.FormatMonth(d),
		Description:       desc,
		Debit:             db,
		Credit:            cr,
		Balance:           decimal.NewNullDecimal(dec(balance)),
		Category:          "TBD",
		Type:              model.Classify(db, cr),
		IngestedAt:        stamp,
	}
}

func TestRoundTrip(t *testing.T) {
	linked := txn(2, 10, "DINNER, \"LE BON\"", "75", "0", "1880")
	linked.OriginalDebit = decimal.NewNullDecimal(dec("120"))
	linked.LastUpdated = stamp
	linked.Reimbursement = &model.Reimbursement{
		HasReimbursement: true,
		LinkedAt:         stamp,
		List: []model.ReimbursementEntry{
			{FromTransactionID: "ptsb:4", Amount: dec("45"), LinkedAt: stamp},
		},
	}
	nobal := txn(3, 11, "NO BALANCE", "5", "0", "0")
	nobal.Balance = decimal.NullDecimal{}

	txns := []model.Transaction{txn(1, 1, "SALARY", "0", "2000", "2000"), linked, nobal}

	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, txns))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, Header, lines[0])

	got, err := ReadTransactions(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "DINNER, \"LE BON\"", got[1].Description)
	assert.True(t, got[1].Debit.Equal(dec("75")))
	assert.True(t, got[1].OriginalDebit.Valid)
	assert.True(t, got[1].OriginalDebit.Decimal.Equal(dec("120")))
	require.NotNil(t, got[1].Reimbursement)
	assert.True(t, got[1].Reimbursement.HasReimbursement)
	require.Len(t, got[1].Reimbursement.List, 1)
	assert.Equal(t, "ptsb:4", got[1].Reimbursement.List[0].FromTransactionID)
	assert.True(t, got[1].Reimbursement.List[0].Amount.Equal(dec("45")))
	assert.True(t, stamp.Equal(got[1].Reimbursement.LinkedAt))
	assert.True(t, stamp.Equal(got[1].LastUpdated))

	assert.Nil(t, got[0].Reimbursement)
	assert.False(t, got[0].OriginalDebit.Valid)
	assert.False(t, got[2].Balance.Valid)
	assert.Equal(t, civil.Date{Year: 2025, Month: 9, Day: 1}, got[0].Date)
	assert.Equal(t, model.TypeCredit, got[0].Type)
}

func TestReadTransactions_Empty(t *testing.T) {
	got, err := ReadTransactions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnmarshalTransaction_Errors(t *testing.T) {
	good, err := MarshalTransaction(txn(1, 1, "SALARY", "0", "2000", "2000"))
	require.NoError(t, err)

	tests := []struct {
		name string
		col  int
		val  string
	}{
		{"bad number", colNumber, "x"},
		{"bad date", colDate, "2025-13-01"},
		{"bad debit", colDebit, "abc"},
		{"bad balance", colBalance, "1,000"},
		{"bad reimbursement", colReimb, "{"},
		{"bad timestamp", colIngestedAt, "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := append([]string(nil), good...)
			rec[tt.col] = tt.val
			_, err := UnmarshalTransaction(rec)
			assert.Error(t, err)
		})
	}

	_, err = UnmarshalTransaction(good[:5])
	assert.ErrorContains(t, err, "expected 18 fields")
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	s.Now = func() time.Time { return stamp }

	require.NoError(t, s.Insert(ctx, "ptsb", []model.Transaction{
		txn(1, 1, "SALARY", "0", "2000", "2000"),
		txn(2, 10, "DINNER", "120", "0", "1880"),
		txn(3, 20, "REFUND JOHN", "0", "45", "1925"),
	}))

	n, err := s.UpdateCategories(ctx, []model.CategoryUpdate{
		{AccountID: "ptsb", TransactionNumber: 3, Category: "Reimbursement"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Link(ctx, ledger.LinkRequest{
		Credit:   model.Key{AccountID: "ptsb", Number: 3},
		Debit:    model.Key{AccountID: "ptsb", Number: 2},
		Amount:   dec("45"),
		LinkedAt: stamp,
	}))

	reopened, err := Open(dir)
	require.NoError(t, err)

	highest, err := reopened.MaxTransactionNumber(ctx, "ptsb")
	require.NoError(t, err)
	assert.Equal(t, int64(3), highest)

	debit, err := reopened.Get(ctx, model.Key{AccountID: "ptsb", Number: 2})
	require.NoError(t, err)
	assert.Equal(t, "75.00", debit.Debit.StringFixed(2))
	assert.True(t, debit.OriginalDebit.Decimal.Equal(dec("120")))

	credit, err := reopened.Get(ctx, model.Key{AccountID: "ptsb", Number: 3})
	require.NoError(t, err)
	assert.Equal(t, "Reimbursement", credit.Category)
	assert.True(t, credit.ConsumedAsReimbursement())
	assert.Equal(t, "ptsb:2", credit.Reimbursement.ToTransactionID)
}

func TestStore_RejectedInsertLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "ptsb", []model.Transaction{txn(1, 1, "SALARY", "0", "2000", "2000")}))
	before, err := os.ReadFile(filepath.Join(dir, LedgerFile))
	require.NoError(t, err)

	err = s.Insert(ctx, "ptsb", []model.Transaction{txn(3, 2, "GAP", "1", "0", "1999")})
	require.Error(t, err)

	after, err := os.ReadFile(filepath.Join(dir, LedgerFile))
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStore_NoMatchedUpdatesSkipsWrite(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	n, err := s.UpdateCategories(context.Background(), []model.CategoryUpdate{
		{AccountID: "ptsb", TransactionNumber: 1, Category: "Ghost"},
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = os.Stat(filepath.Join(s.Dir(), LedgerFile))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_RefreshNetWorthAppends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	s.Now = func() time.Time { return stamp }
	require.NoError(t, s.Insert(ctx, "ptsb", []model.Transaction{txn(1, 1, "SALARY", "0", "2000", "2000")}))

	require.NoError(t, s.RefreshNetWorth(ctx))
	s.Now = func() time.Time { return stamp.Add(time.Hour) }
	require.NoError(t, s.Insert(ctx, "ptsb", []model.Transaction{txn(2, 2, "RENT", "1500", "0", "500")}))
	require.NoError(t, s.RefreshNetWorth(ctx))

	data, err := os.ReadFile(filepath.Join(dir, NetWorthFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, NetWorthHeader, lines[0])

	reopened, err := Open(dir)
	require.NoError(t, err)
	history := reopened.NetWorthHistory()
	require.Len(t, history, 2)
	assert.True(t, history[0].Total.Equal(dec("2000")))
	assert.True(t, history[1].Total.Equal(dec("500")))
	assert.True(t, stamp.Equal(history[0].ComputedAt))
}

func TestStore_FailedNetWorthAppendKeepsHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	s.Now = func() time.Time { return stamp }
	require.NoError(t, s.Insert(ctx, "ptsb", []model.Transaction{txn(1, 1, "SALARY", "0", "2000", "2000")}))
	require.NoError(t, s.RefreshNetWorth(ctx))

	// A directory in place of the file makes the append fail.
	path := filepath.Join(dir, NetWorthFile)
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	s.Now = func() time.Time { return stamp.Add(time.Hour) }
	require.Error(t, s.RefreshNetWorth(ctx))
	assert.Len(t, s.NetWorthHistory(), 1, "no snapshot kept that the file does not have")
}
