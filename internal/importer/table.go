package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// RawTable is an export as read from disk: a header and untyped cells.
type RawTable struct {
	Header []string
	Rows   [][]string
}

// columns maps each required column name to its index, or returns a
// SchemaError naming every column that is absent.
func (t *RawTable) columns(bank string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		idx[strings.TrimSpace(h)] = i
	}

	cols := make(map[string]int, len(required))
	var missing []string
	for _, name := range required {
		i, ok := idx[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		cols[name] = i
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Bank: bank, Missing: missing}
	}
	return cols, nil
}

// cell returns row[i] trimmed, or "" when the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// decodeText strips a UTF-8 byte order mark and falls back to Windows-1252
// when the input is not valid UTF-8.
func decodeText(data []byte) ([]byte, error) {
	if utf8.Valid(data) {
		return unicode.UTF8BOM.NewDecoder().Bytes(data)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding windows-1252: %w", err)
	}
	return out, nil
}

// readCSV reads a delimited export. Blank lines are dropped and the first
// remaining record is the header.
func readCSV(r io.Reader, sep rune) (*RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	data, err = decodeText(data)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	var nonBlank [][]string
	for _, rec := range records {
		if !isBlank(rec) {
			nonBlank = append(nonBlank, rec)
		}
	}
	if len(nonBlank) == 0 {
		return &RawTable{}, nil
	}
	return &RawTable{Header: nonBlank[0], Rows: nonBlank[1:]}, nil
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseDate tries each layout in turn and returns the zero Date if none match.
func parseDate(s string, layouts ...string) civil.Date {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t)
		}
	}
	return civil.Date{}
}

// parseAmount parses a plain decimal, returning zero for empty or malformed input.
func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseBalance parses a plain decimal, returning null for empty or malformed input.
func parseBalance(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// commaDecimal converts "1 234,56" to "1234.56".
func commaDecimal(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == ' ' || r == '\u00a0' || r == '\u202f' {
			return -1
		}
		return r
	}, s)
	return strings.Replace(s, ",", ".", 1)
}
