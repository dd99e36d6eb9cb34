package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finoob/finoob/internal/accounts"
	"github.com/finoob/finoob/internal/auditlog"
	"github.com/finoob/finoob/internal/config"
	"github.com/finoob/finoob/internal/ledger/csvstore"
	"github.com/finoob/finoob/internal/logging"
	"github.com/finoob/finoob/internal/rules"
)

func project(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Directory = t.TempDir()
	require.NoError(t, accounts.Write(cfg.AccountsPath(), accounts.Starter()))
	require.NoError(t, rules.Write(cfg.CategoriesPath(), rules.Starter()))
	return cfg
}

func TestNew_CSVBackendImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := project(t)

	a, err := NewWithLogger(ctx, cfg, logging.NewMockLogger())
	require.NoError(t, err)
	defer a.Close()

	f, err := os.Open(filepath.Join("..", "..", "testdata", "revolut.csv"))
	require.NoError(t, err)
	defer f.Close()

	preview, err := a.Ingest.Preview(ctx, "revolut", f)
	require.NoError(t, err)
	require.Len(t, preview.Rows, 3)
	assert.Equal(t, "Subscriptions", preview.Rows[1].Category)

	result, err := a.Ingest.Save(ctx, "revolut", preview.Rows)
	require.NoError(t, err)
	assert.NoError(t, result.RefreshErr)
	assert.NoError(t, result.BalanceErr)

	_, err = os.Stat(filepath.Join(cfg.LedgerDir(), csvstore.LedgerFile))
	require.NoError(t, err, "csv backend persists under the ledger directory")

	a.Accounts.Invalidate()
	acct, err := a.Accounts.Get("revolut")
	require.NoError(t, err)
	assert.Equal(t, "424.01", acct.Balance.StringFixed(2))
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := project(t)
	cfg.Ledger.Backend = "sqlite"

	_, err := NewWithLogger(context.Background(), cfg, logging.NewMockLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown ledger backend "sqlite"`)
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(context.Background(), nil)
	require.Error(t, err)
}

func TestAudit(t *testing.T) {
	cfg := project(t)
	a, err := NewWithLogger(context.Background(), cfg, logging.NewMockLogger())
	require.NoError(t, err)
	defer a.Close()

	a.Audit(auditlog.NewEntry(auditlog.ActionCategorize, "ptsb", []string{"ptsb:4"}, "1 row updated"))

	entries, err := auditlog.Read(cfg.DataDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"ptsb:4"}, entries[0].TransactionIDs)
}

func TestSourceOptions(t *testing.T) {
	cfg := project(t)
	a, err := NewWithLogger(context.Background(), cfg, logging.NewMockLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.SourceOptions())

	cfg.BigQuery.CredentialsFile = "sa.json"
	assert.Len(t, a.SourceOptions(), 1)
}
