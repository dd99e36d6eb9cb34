package accounts

import (
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

// Starter returns the example registry written by "finoob init". The bank
// codes match the built-in statement adapters.
func Starter() []model.Account {
	return []model.Account{
		{ID: "ptsb", Name: "PTSB Current", Bank: "ptsb", Balance: decimal.Zero, Active: true},
		{ID: "revolut", Name: "Revolut", Bank: "revolut", Balance: decimal.Zero, Active: true},
		{ID: "usbank", Name: "US Bank", Bank: "usbank", Balance: decimal.Zero, Active: true},
		{ID: "cmb", Name: "Crédit Mutuel de Bretagne", Bank: "cmb", Balance: decimal.Zero, Active: true},
	}
}
