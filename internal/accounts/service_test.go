package accounts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// legacyAccounts is the registry shape written by earlier versions: numeric
// balances, naive ISO timestamps.
const legacyAccounts = `{
    "ptsb": {
        "account_name": "PTSB Current",
        "bank": "ptsb",
        "balance": 1880.5,
        "last_updated": "2025-09-30T08:15:00.123456",
        "active": true
    },
    "old_card": {
        "account_name": "Old Card",
        "bank": "usbank",
        "balance": -20,
        "active": false
    },
    "revolut": {
        "account_name": "Revolut",
        "bank": "revolut",
        "balance": 100
    }
}`

func writeLegacy(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyAccounts), 0o644))
	return path
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry(writeLegacy(t))

	a, err := r.Get("ptsb")
	require.NoError(t, err)
	assert.Equal(t, "PTSB Current", a.Name)
	assert.True(t, a.Balance.Equal(decimal.RequireFromString("1880.5")))
	assert.Equal(t, 2025, a.LastUpdated.Year())
	assert.True(t, a.Active)

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestRegistry_BankAndDisplayName(t *testing.T) {
	r := NewRegistry(writeLegacy(t))

	bank, err := r.Bank("revolut")
	require.NoError(t, err)
	assert.Equal(t, "revolut", bank)

	_, err = r.Bank("nope")
	assert.ErrorIs(t, err, ErrUnknownAccount)

	assert.Equal(t, "Revolut", r.DisplayName("revolut"))
	assert.Equal(t, "nope", r.DisplayName("nope"))
}

func TestRegistry_AllFiltersArchived(t *testing.T) {
	r := NewRegistry(writeLegacy(t))

	active, err := r.All(false)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "ptsb", active[0].ID)
	assert.Equal(t, "revolut", active[1].ID, "missing active flag means active")

	all, err := r.All(true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "1960.5", TotalBalance(all).String())
	assert.Equal(t, "1980.5", TotalBalance(active).String())
}

func TestRegistry_SetClosingBalancePersists(t *testing.T) {
	path := writeLegacy(t)
	r := NewRegistry(path)
	at := time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, r.SetClosingBalance("revolut", decimal.RequireFromString("250.75"), at))

	a, err := r.Get("revolut")
	require.NoError(t, err)
	assert.Equal(t, "250.75", a.Balance.String())

	fresh := NewRegistry(path)
	a, err = fresh.Get("revolut")
	require.NoError(t, err)
	assert.Equal(t, "250.75", a.Balance.String())
	assert.True(t, at.Equal(a.LastUpdated))

	all, err := fresh.All(true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ptsb", "old_card", "revolut"}, []string{all[0].ID, all[1].ID, all[2].ID}, "order kept")
	assert.False(t, all[1].Active, "archived flag kept")

	err = r.SetClosingBalance("nope", decimal.Zero, at)
	assert.ErrorIs(t, err, ErrUnknownAccount)
}

func TestRegistry_SetClosingBalanceRereadsFile(t *testing.T) {
	path := writeLegacy(t)
	r := NewRegistry(path)
	_, err := r.Get("ptsb")
	require.NoError(t, err)

	// Another process renames the account while r holds a cached copy.
	accts, err := Load(path)
	require.NoError(t, err)
	accts[0].Name = "PTSB Savings"
	require.NoError(t, Write(path, accts))

	require.NoError(t, r.SetClosingBalance("revolut", decimal.RequireFromString("5"), time.Now()))
	assert.Equal(t, "PTSB Savings", r.DisplayName("ptsb"))

	onDisk, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PTSB Savings", onDisk[0].Name, "external edit not overwritten")
	assert.Equal(t, "5", onDisk[2].Balance.String())
}

func TestRegistry_Invalidate(t *testing.T) {
	path := writeLegacy(t)
	r := NewRegistry(path)
	_, err := r.Get("ptsb")
	require.NoError(t, err)

	require.NoError(t, Write(path, Starter()))
	_, err = r.Get("cmb")
	assert.ErrorIs(t, err, ErrUnknownAccount, "stale cache")

	r.Invalidate()
	a, err := r.Get("cmb")
	require.NoError(t, err)
	assert.Equal(t, "cmb", a.Bank)
}

func TestWriteLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	accts := Starter()
	accts[0].Balance = decimal.RequireFromString("12.34")
	require.NoError(t, Write(path, accts))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "ptsb", got[0].ID)
	assert.Equal(t, "12.34", got[0].Balance.String())
	assert.Equal(t, "Crédit Mutuel de Bretagne", got[3].Name)
}

func TestLoadBadTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": {"bank": "ptsb", "balance": 1, "last_updated": "yesterday"}}`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "last_updated")
}
