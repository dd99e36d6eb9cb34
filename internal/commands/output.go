package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/model"
)

var (
	warnBanner    = color.New(color.BgYellow, color.FgBlack)
	successBanner = color.New(color.BgGreen, color.FgBlack)
	infoBanner    = color.New(color.BgBlue, color.FgWhite)
	failBanner    = color.New(color.BgRed, color.FgWhite)
)

func banner(w io.Writer, c *color.Color, tag, format string, args ...any) {
	c.Fprintf(w, " %s ", tag)
	fmt.Fprintf(w, " "+format+"\n", args...)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return money(d.Decimal)
}

func dateString(t model.Transaction) string {
	if !t.Date.IsValid() {
		return "-"
	}
	return t.Date.String()
}

func transactionIDs(txns []model.Transaction) []string {
	ids := make([]string, len(txns))
	for i, t := range txns {
		ids[i] = t.TransactionID
	}
	return ids
}
