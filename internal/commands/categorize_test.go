package commands_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finoob/finoob/internal/auditlog"
	"github.com/finoob/finoob/internal/model"
	"github.com/finoob/finoob/internal/rules"
)

// importRevolut saves the revolut fixture: revolut:1 top-up 500.00 (no
// category), revolut:2 Netflix 15.99 (Subscriptions), revolut:3 transfer
// 60.00 (no category).
func importRevolut(t *testing.T, cfg []string) {
	t.Helper()
	out, err := runFinoob(t, append(cfg, "import", "revolut", testdata("revolut.csv"), "--save")...)
	require.NoError(t, err, out)
}

// recategorize exports the uncategorized rows, sets category and label on
// revolut:1 and applies the edit.
func recategorize(t *testing.T, dir string, cfg []string, category, label string) string {
	t.Helper()
	original := filepath.Join(dir, "uncategorized.csv")
	out, err := runFinoob(t, append(cfg, "categorize", "list", "revolut", "--out", original)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wrote 2 uncategorized transactions")

	data, err := os.ReadFile(original)
	require.NoError(t, err)
	edited := strings.Replace(string(data), "Top-up by *1234,0.00,500.00,,", "Top-up by *1234,0.00,500.00,"+category+","+label, 1)
	require.NotEqual(t, string(data), edited, "fixture row not found")

	editedPath := filepath.Join(dir, "edited.csv")
	require.NoError(t, os.WriteFile(editedPath, []byte(edited), 0o644))

	out, err = runFinoob(t, append(cfg, "categorize", "apply", original, editedPath)...)
	require.NoError(t, err, out)
	return out
}

func TestCategorize_ListAndApply(t *testing.T) {
	dir, cfg := initProject(t)
	importRevolut(t, cfg)

	out := recategorize(t, dir, cfg, "Income", "Top-up")
	assert.Contains(t, out, "1 transactions updated")

	out, err := runFinoob(t, append(cfg, "categorize", "list", "revolut")...)
	require.NoError(t, err, out)
	assert.NotContains(t, out, "Top-up by")
	assert.Contains(t, out, "To John Murphy")

	entries, err := auditlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, auditlog.ActionCategorize, entries[1].Action)
	assert.Equal(t, []string{"revolut:1"}, entries[1].TransactionIDs)
}

func TestCategorize_ApplyWithoutChanges(t *testing.T) {
	dir, cfg := initProject(t)
	importRevolut(t, cfg)

	original := filepath.Join(dir, "uncategorized.csv")
	out, err := runFinoob(t, append(cfg, "categorize", "list", "revolut", "--out", original)...)
	require.NoError(t, err, out)

	out, err = runFinoob(t, append(cfg, "categorize", "apply", original, original)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No changes detected")
}

func TestCategorize_ApplyMissingFile(t *testing.T) {
	_, cfg := initProject(t)
	_, err := runFinoob(t, append(cfg, "categorize", "apply", "nope.csv", "nope2.csv")...)
	require.Error(t, err)
}

func TestRules_ListAndDiff(t *testing.T) {
	dir, cfg := initProject(t)

	out, err := runFinoob(t, append(cfg, "rules", "list")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "NETFLIX")
	assert.Less(t, strings.Index(out, "Groceries"), strings.Index(out, "Transport"), "file order is kept")

	updated := filepath.Join(dir, "categories-new.yaml")
	require.NoError(t, os.WriteFile(updated, []byte(`Groceries:
  - keyword: TESCO
    label: Tesco Stores
  - keyword: LIDL
    label: Lidl
  - keyword: SUPERVALU
    label: SuperValu
`), 0o644))

	out, err = runFinoob(t, "rules", "diff", "Groceries", filepath.Join(dir, "categories.json"), updated)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Groceries: 1 added, 1 deleted, 1 modified")
}

func TestRules_AddAndRemove(t *testing.T) {
	dir, cfg := initProject(t)

	out, err := runFinoob(t, append(cfg, "rules", "add", "Groceries", "SUPERVALU", "SuperValu")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Groceries: 1 added")

	out, err = runFinoob(t, append(cfg, "rules", "add", "Groceries", "TESCO", "Tesco Stores")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Groceries: 1 modified")

	out, err = runFinoob(t, append(cfg, "rules", "add", "Eating Out")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Added category Eating Out")

	out, err = runFinoob(t, append(cfg, "rules", "add", "Eating Out")...)
	require.Error(t, err)
	assert.Contains(t, out, `category "Eating Out" already exists`)

	out, err = runFinoob(t, append(cfg, "rules", "remove", "Groceries", "ALDI")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Groceries: 1 deleted")

	out, err = runFinoob(t, append(cfg, "rules", "remove", "Transport")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Category Transport (2 keywords)")

	out, err = runFinoob(t, append(cfg, "rules", "remove", "Transport")...)
	require.Error(t, err)
	assert.Contains(t, out, `unknown category "Transport"`)

	out, err = runFinoob(t, append(cfg, "rules", "remove", "Groceries", "ALDI")...)
	require.Error(t, err)
	assert.Contains(t, out, `keyword "ALDI" not found`)

	rs, err := rules.Load(filepath.Join(dir, "categories.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Groceries", "Subscriptions", "Reimbursement", "Eating Out"}, rs.Categories())
	groceries, _ := rs.Rules("Groceries")
	assert.Equal(t, []model.Rule{
		{Keyword: "TESCO", Label: "Tesco Stores"},
		{Keyword: "LIDL", Label: "Lidl"},
		{Keyword: "SUPERVALU", Label: "SuperValu"},
	}, groceries)
}

func TestRules_AddedKeywordCategorizesImport(t *testing.T) {
	dir, cfg := initProject(t)

	out, err := runFinoob(t, append(cfg, "rules", "add", "Income", "Top-up")...)
	require.NoError(t, err, out)

	out, err = runFinoob(t, append(cfg, "import", "revolut", testdata("revolut.csv"), "--out", filepath.Join(dir, "review.csv"))...)
	require.NoError(t, err, out)

	data, err := os.ReadFile(filepath.Join(dir, "review.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Top-up by *1234,0.00,500.00,500.00,Income,Top-up")
}

func TestAccounts_SetBalance(t *testing.T) {
	_, cfg := initProject(t)

	out, err := runFinoob(t, append(cfg, "accounts", "set-balance", "ptsb", "1234.5")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "PTSB Current balance is now 1234.50")

	out, err = runFinoob(t, append(cfg, "accounts", "list")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1234.50")

	out, err = runFinoob(t, append(cfg, "accounts", "set-balance", "nope", "1")...)
	require.Error(t, err)
	assert.Contains(t, out, "unknown account")

	_, err = runFinoob(t, append(cfg, "accounts", "set-balance", "ptsb", "lots")...)
	require.Error(t, err)
}

func TestAccounts_ListAll(t *testing.T) {
	_, cfg := initProject(t)

	out, err := runFinoob(t, append(cfg, "accounts", "list", "--all")...)
	require.NoError(t, err, out)
	for _, id := range []string{"ptsb", "revolut", "usbank", "cmb", "TOTAL"} {
		assert.Contains(t, out, id)
	}
}
