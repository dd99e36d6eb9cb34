package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finoob/finoob/internal/auditlog"
)

// The fixture predates the default cutover.
var earlyCutover = runOpts{env: []string{"FINOOB_REIMBURSEMENT_CUTOVER_DATE=2024-12-31"}}

func TestReimburse_CandidatesAndExpenses(t *testing.T) {
	dir, cfg := initProject(t)
	importRevolut(t, cfg)

	out, err := runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "candidates", "revolut")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No unlinked reimbursements")

	recategorize(t, dir, cfg, "Reimbursement", "John")

	out, err = runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "candidates", "revolut")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "revolut:1")
	assert.Contains(t, out, "500.00")

	out, err = runFinoob(t, append(cfg, "reimburse", "candidates", "revolut")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No unlinked reimbursements", "default cutover excludes January")

	out, err = runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "expenses", "revolut", "--search", "netflix")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "revolut:2")
	assert.NotContains(t, out, "revolut:3")
}

func TestReimburse_Link(t *testing.T) {
	dir, cfg := initProject(t)
	importRevolut(t, cfg)
	recategorize(t, dir, cfg, "Reimbursement", "John")

	out, err := runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "link", "revolut:1", "revolut:3", "--yes")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Net after link")
	assert.Contains(t, out, "-440.00")
	assert.Contains(t, out, "WARNING")
	assert.Contains(t, out, "LINKED")

	out, err = runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "expenses", "revolut")...)
	require.NoError(t, err, out)
	assert.NotContains(t, out, "revolut:3", "an over-reimbursed expense is no longer a debit")
	assert.Contains(t, out, "revolut:2")

	out, err = runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "candidates", "revolut")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "No unlinked reimbursements", "a linked credit is consumed")

	out, err = runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "link", "revolut:1", "revolut:2", "--yes")...)
	require.Error(t, err)
	assert.Contains(t, out, "no changes applied")

	entries, err := auditlog.Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, auditlog.ActionLink, entries[2].Action)
	assert.Equal(t, []string{"revolut:1", "revolut:3"}, entries[2].TransactionIDs)
}

func TestReimburse_LinkCancelled(t *testing.T) {
	dir, cfg := initProject(t)
	importRevolut(t, cfg)
	recategorize(t, dir, cfg, "Reimbursement", "John")

	opts := earlyCutover
	opts.stdin = "n\n"
	out, err := runFinoobWith(t, opts, append(cfg, "reimburse", "link", "revolut:1", "revolut:3")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Apply this link? [y/N]")
	assert.Contains(t, out, "Cancelled, no changes applied")

	out, err = runFinoobWith(t, earlyCutover, append(cfg, "reimburse", "candidates", "revolut")...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "revolut:1")
}

func TestReimburse_LinkBadID(t *testing.T) {
	_, cfg := initProject(t)
	out, err := runFinoob(t, append(cfg, "reimburse", "link", "revolut", "revolut:3", "--yes")...)
	require.Error(t, err)
	assert.Contains(t, out, "invalid transaction ID")
}
