package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is one entry of the account registry.
type Account struct {
	ID          string
	Name        string
	Bank        string // selects the statement adapter
	Balance     decimal.Decimal
	LastUpdated time.Time
	Active      bool
}
