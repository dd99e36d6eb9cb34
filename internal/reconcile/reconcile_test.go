package reconcile

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finoob/finoob/internal/model"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func row(d civil.Date, desc, debit, credit string) model.StatementRow {
	return model.StatementRow{Date: d, Description: desc, Debit: dec(debit), Credit: dec(credit)}
}

func statement() []model.StatementRow {
	return []model.StatementRow{
		row(date(2025, 1, 1), "SALARY", "0", "2000"),
		row(date(2025, 1, 2), "TESCO", "45.10", "0"),
		row(date(2025, 1, 3), "NETFLIX", "15.99", "0"),
		row(date(2025, 1, 4), "ESB", "80", "0"),
	}
}

func TestSortChronological(t *testing.T) {
	rows := []model.StatementRow{
		row(date(2025, 1, 3), "c", "1", "0"),
		row(civil.Date{}, "no date", "1", "0"),
		row(date(2025, 1, 1), "a1", "1", "0"),
		row(date(2025, 1, 1), "a2", "1", "0"),
		row(date(2025, 1, 2), "b", "1", "0"),
	}
	SortChronological(rows)

	var got []string
	for _, r := range rows {
		got = append(got, r.Description)
	}
	assert.Equal(t, []string{"a1", "a2", "b", "c", "no date"}, got)
}

func TestFindNew_FirstImport(t *testing.T) {
	res := FindNew(statement(), nil)
	assert.Equal(t, FirstImport, res.Outcome)
	assert.False(t, res.Warning())
	assert.Len(t, res.New, 4)
	assert.Equal(t, -1, res.MarkerIndex)
}

func TestFindNew_MarkerFound(t *testing.T) {
	marker := &model.Transaction{Date: date(2025, 1, 2), Description: "TESCO", Debit: dec("45.1"), Credit: decimal.Zero}

	res := FindNew(statement(), marker)
	assert.Equal(t, MarkerFound, res.Outcome)
	assert.False(t, res.Warning())
	assert.Equal(t, 1, res.MarkerIndex)
	require.Len(t, res.New, 2)
	assert.Equal(t, "NETFLIX", res.New[0].Description)
	assert.Equal(t, "ESB", res.New[1].Description)
}

func TestFindNew_MarkerIsLastRow(t *testing.T) {
	marker := &model.Transaction{Date: date(2025, 1, 4), Description: "ESB", Debit: dec("80")}

	res := FindNew(statement(), marker)
	assert.Equal(t, MarkerFound, res.Outcome)
	assert.Empty(t, res.New, "re-importing the same statement yields nothing new")
}

func TestFindNew_DuplicateMatchesTakeLast(t *testing.T) {
	rows := []model.StatementRow{
		row(date(2025, 1, 5), "LUAS", "2.50", "0"),
		row(date(2025, 1, 5), "LUAS", "2.50", "0"),
		row(date(2025, 1, 6), "SPAR", "4", "0"),
	}
	marker := &model.Transaction{Date: date(2025, 1, 5), Description: "LUAS", Debit: dec("2.50")}

	res := FindNew(rows, marker)
	assert.Equal(t, 1, res.MarkerIndex)
	require.Len(t, res.New, 1)
	assert.Equal(t, "SPAR", res.New[0].Description)
}

func TestFindNew_MarkerMissingFailsOpen(t *testing.T) {
	marker := &model.Transaction{Date: date(2024, 12, 31), Description: "OLD ROW", Debit: dec("1")}

	res := FindNew(statement(), marker)
	assert.Equal(t, MarkerMissing, res.Outcome)
	assert.True(t, res.Warning())
	assert.Len(t, res.New, 4)
}

func TestFindNew_ExactFieldEquality(t *testing.T) {
	tests := []struct {
		name   string
		marker model.Transaction
	}{
		{"different date", model.Transaction{Date: date(2025, 1, 3), Description: "TESCO", Debit: dec("45.10")}},
		{"different description case", model.Transaction{Date: date(2025, 1, 2), Description: "Tesco", Debit: dec("45.10")}},
		{"different amount", model.Transaction{Date: date(2025, 1, 2), Description: "TESCO", Debit: dec("45.11")}},
		{"amount on wrong side", model.Transaction{Date: date(2025, 1, 2), Description: "TESCO", Credit: dec("45.10")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.marker
			res := FindNew(statement(), &m)
			assert.Equal(t, MarkerMissing, res.Outcome)
		})
	}
}

func TestFindNew_NullDateRowNeverMatches(t *testing.T) {
	rows := []model.StatementRow{row(civil.Date{}, "TESCO", "45.10", "0")}
	marker := &model.Transaction{Date: date(2025, 1, 2), Description: "TESCO", Debit: dec("45.10")}

	res := FindNew(rows, marker)
	assert.Equal(t, MarkerMissing, res.Outcome)
}

func TestReconstructBalance(t *testing.T) {
	rows := statement()
	out := ReconstructBalance(rows, dec("100"))

	want := []string{"2100.00", "2054.90", "2038.91", "1958.91"}
	require.Len(t, out, 4)
	for i, r := range out {
		require.True(t, r.Balance.Valid)
		assert.Equal(t, want[i], r.Balance.Decimal.StringFixed(2), "row %d", i)
	}
	assert.False(t, rows[0].Balance.Valid, "input is not modified")

	// Continuity: balance[i] = balance[i-1] + credit[i] - debit[i].
	for i := 1; i < len(out); i++ {
		expected := out[i-1].Balance.Decimal.Add(out[i].Credit).Sub(out[i].Debit)
		assert.True(t, expected.Equal(out[i].Balance.Decimal))
	}
}

func TestReconstructBalance_Empty(t *testing.T) {
	assert.Empty(t, ReconstructBalance(nil, dec("5")))
}

func TestSeedBalance(t *testing.T) {
	assert.True(t, SeedBalance(nil).IsZero())
	assert.True(t, SeedBalance(&model.Transaction{}).IsZero())
	m := &model.Transaction{Balance: decimal.NewNullDecimal(dec("321.09"))}
	assert.Equal(t, "321.09", SeedBalance(m).StringFixed(2))
}

func TestFindNew_ReimbursedMarkerMatchesExportedDebit(t *testing.T) {
	marker := &model.Transaction{
		Date:          date(2025, 1, 3),
		Description:   "NETFLIX",
		Debit:         dec("5.99"),
		OriginalDebit: decimal.NewNullDecimal(dec("15.99")),
	}

	res := FindNew(statement(), marker)
	assert.Equal(t, MarkerFound, res.Outcome)
	require.Len(t, res.New, 1)
	assert.Equal(t, "ESB", res.New[0].Description)
}
