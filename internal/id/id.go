package id

import (
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
)

// FormatTransactionID returns a composite id like "revolut-eur:42".
func FormatTransactionID(accountID string, number int64) string {
	return accountID + ":" + strconv.FormatInt(number, 10)
}

// ParseTransactionID parses "revolut-eur:42" into account id and number.
// Account ids may themselves contain ':'; the number follows the last one.
func ParseTransactionID(s string) (accountID string, number int64, err error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", 0, fmt.Errorf("invalid transaction ID format: %q", s)
	}

	number, err = strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid number in transaction ID %q: %w", s, err)
	}
	if number < 1 {
		return "", 0, fmt.Errorf("invalid number in transaction ID %q: must be positive", s)
	}

	return s[:i], number, nil
}

// FormatMonth returns the ledger month bucket like "2025-03".
func FormatMonth(d civil.Date) string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}
