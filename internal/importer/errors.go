package importer

import (
	"fmt"
	"strings"
)

// SchemaError reports an export that lacks columns its adapter requires.
type SchemaError struct {
	Bank    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s export is missing required columns: %s", e.Bank, strings.Join(e.Missing, ", "))
}

// UnknownBankError reports a bank code with no registered adapter.
type UnknownBankError struct {
	Bank string
}

func (e *UnknownBankError) Error() string {
	return fmt.Sprintf("no statement adapter for bank %q", e.Bank)
}
