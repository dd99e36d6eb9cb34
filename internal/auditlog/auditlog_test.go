package auditlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:      testTime,
		ID:             "5b0c1c8e-5f5e-4a4f-9d0c-3c1f8f2e7a10",
		Action:         ActionLink,
		AccountID:      "ptsb",
		TransactionIDs: []string{"ptsb:7", "ptsb:3"},
		Details:        "linked 45.00, net 75.00",
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionLink, entries[0].Action)

	data, err := os.ReadFile(Path(dir))
	require.NoError(t, err)
	assert.Contains(t, string(data), Header+"\n")
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := NewEntry(ActionImport, "revolut", []string{"revolut:1"}, "1 new transaction")
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionLink, entries[0].Action)
	assert.Equal(t, ActionImport, entries[1].Action)
	assert.Equal(t, e2.ID, entries[1].ID)
}

func TestAppend_AssignsMissingID(t *testing.T) {
	dir := t.TempDir()
	e := testEntry()
	e.ID = ""
	require.NoError(t, Append(dir, []Entry{e}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
}

func TestRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	original := testEntry()
	require.NoError(t, Append(dir, []Entry{original}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.AccountID, got.AccountID)
	assert.Equal(t, original.TransactionIDs, got.TransactionIDs)
	assert.Equal(t, original.Details, got.Details)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logs"), 0o755))
	require.NoError(t, os.WriteFile(Path(dir), []byte(Header+"\n"), 0o644))

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestMarshalEntry(t *testing.T) {
	row := MarshalEntry(testEntry())
	assert.Equal(t, []string{
		"2025-09-15T10:30:00Z",
		"5b0c1c8e-5f5e-4a4f-9d0c-3c1f8f2e7a10",
		"link",
		"ptsb",
		"ptsb:7;ptsb:3",
		"linked 45.00, net 75.00",
	}, row)
}

func TestUnmarshalEntry_NoTransactions(t *testing.T) {
	e := testEntry()
	e.TransactionIDs = nil
	got, err := UnmarshalEntry(MarshalEntry(e))
	require.NoError(t, err)
	assert.Nil(t, got.TransactionIDs)
}

func TestUnmarshalEntry_Errors(t *testing.T) {
	tests := []struct {
		name   string
		record []string
		want   string
	}{
		{"field count", []string{"one", "two"}, "expected 6 fields"},
		{"timestamp", []string{"yesterday", "5b0c1c8e-5f5e-4a4f-9d0c-3c1f8f2e7a10", "link", "ptsb", "", ""}, "parsing timestamp"},
		{"id", []string{"2025-09-15T10:30:00Z", "abc", "link", "ptsb", "", ""}, "parsing id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEntry(tt.record)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAppend_CreatesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	info, err := os.Stat(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
