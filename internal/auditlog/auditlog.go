package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the CLI.
const (
	ActionImport     = "import"
	ActionCategorize = "categorize"
	ActionLink       = "link"
)

// Entry is one row in the activity log.
type Entry struct {
	Timestamp      time.Time
	ID             string
	Action         string
	AccountID      string
	TransactionIDs []string
	Details        string
}

// Header is the CSV header for activity.csv.
const Header = "timestamp,id,action,account_id,transaction_ids,details"

const (
	numFields         = 6
	logDir            = "logs"
	logFile           = "logs/activity.csv"
	idSeparator       = ";"
	colTimestamp      = 0
	colID             = 1
	colAction         = 2
	colAccountID      = 3
	colTransactionIDs = 4
	colDetails        = 5
)

// Path returns the activity log location under root.
func Path(root string) string {
	return filepath.Join(root, logFile)
}

// NewEntry stamps an entry with the current time and a fresh id.
func NewEntry(action, accountID string, txnIDs []string, details string) Entry {
	return Entry{
		Timestamp:      time.Now().UTC(),
		ID:             uuid.NewString(),
		Action:         action,
		AccountID:      accountID,
		TransactionIDs: txnIDs,
		Details:        details,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colID] = e.ID
	row[colAction] = e.Action
	row[colAccountID] = e.AccountID
	row[colTransactionIDs] = strings.Join(e.TransactionIDs, idSeparator)
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	if _, err := uuid.Parse(record[colID]); err != nil {
		return Entry{}, fmt.Errorf("parsing id %q: %w", record[colID], err)
	}

	var ids []string
	if record[colTransactionIDs] != "" {
		ids = strings.Split(record[colTransactionIDs], idSeparator)
	}

	return Entry{
		Timestamp:      ts,
		ID:             record[colID],
		Action:         record[colAction],
		AccountID:      record[colAccountID],
		TransactionIDs: ids,
		Details:        record[colDetails],
	}, nil
}

// Append writes entries to <root>/logs/activity.csv, creating the file and
// header if needed. Entries without an id get one.
func Append(root string, entries []Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := Path(root)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/activity.csv.
// Returns an empty slice if the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(Path(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading activity log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
