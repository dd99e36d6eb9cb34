package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finoob/finoob/internal/id"
	"github.com/finoob/finoob/internal/model"
)

// Invariant names reported in ValidationError.
const (
	InvariantAccount      = "account"
	InvariantNumbering    = "numbering"
	InvariantIdentity     = "identity"
	InvariantDate         = "date"
	InvariantAmounts      = "amounts"
	InvariantDerived      = "derived"
	InvariantLinkCredit   = "link-credit"
	InvariantLinkDebit    = "link-debit"
	InvariantLinkDistinct = "link-distinct"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant     string
	TransactionID string
	Description   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invariant %s [%s]: %s", e.Invariant, e.TransactionID, e.Description)
}

// ValidationErrors collects every violation found in one write.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// ValidateInsert checks a batch about to be appended after currentMax.
// Numbers must continue the account's sequence without gaps or repeats.
func ValidateInsert(accountID string, currentMax int64, txns []model.Transaction) ValidationErrors {
	var errs ValidationErrors
	add := func(inv string, t model.Transaction, format string, args ...any) {
		errs = append(errs, ValidationError{
			Invariant:     inv,
			TransactionID: t.TransactionID,
			Description:   fmt.Sprintf(format, args...),
		})
	}

	for i, t := range txns {
		if t.AccountID != accountID {
			add(InvariantAccount, t, "row belongs to account %q, not %q", t.AccountID, accountID)
		}

		want := currentMax + int64(i) + 1
		if t.TransactionNumber != want {
			add(InvariantNumbering, t, "transaction_number %d, expected %d", t.TransactionNumber, want)
		}

		if t.TransactionID != id.FormatTransactionID(t.AccountID, t.TransactionNumber) {
			add(InvariantIdentity, t, "transaction_id does not match %s", t.Key())
		}

		if !t.Date.IsValid() {
			add(InvariantDate, t, "missing or invalid date")
		} else if t.Year != t.Date.Year || t.Month != id.FormatMonth(t.Date) {
			add(InvariantDerived, t, "year/month %d/%s do not match date %s", t.Year, t.Month, t.Date)
		}

		if t.Debit.IsNegative() || t.Credit.IsNegative() {
			add(InvariantAmounts, t, "debit and credit must be non-negative")
		}

		if t.Type != model.Classify(t.Debit, t.Credit) {
			add(InvariantDerived, t, "transaction_type %q, expected %q", t.Type, model.Classify(t.Debit, t.Credit))
		}
	}
	return errs
}

// ValidateLink checks that credit may be applied to debit.
func ValidateLink(credit, debit model.Transaction) error {
	creditID := credit.Key().String()
	debitID := debit.Key().String()

	if credit.Key() == debit.Key() {
		return ValidationError{InvariantLinkDistinct, creditID, "a row cannot reimburse itself"}
	}
	if model.Classify(credit.Debit, credit.Credit) != model.TypeCredit || !credit.Credit.IsPositive() {
		return ValidationError{InvariantLinkCredit, creditID, "reimbursement row must be a credit"}
	}
	if credit.ConsumedAsReimbursement() {
		return ValidationError{InvariantLinkCredit, creditID,
			fmt.Sprintf("already linked to %s", credit.Reimbursement.ToTransactionID)}
	}
	if credit.Reimbursement != nil && credit.Reimbursement.HasReimbursement {
		return ValidationError{InvariantLinkCredit, creditID, "row has received reimbursements itself"}
	}
	if !debit.Credit.IsZero() || !debit.Debit.IsPositive() {
		return ValidationError{InvariantLinkDebit, debitID, "expense row must be a debit"}
	}
	if debit.ConsumedAsReimbursement() {
		return ValidationError{InvariantLinkDebit, debitID, "expense row is a consumed reimbursement"}
	}
	return nil
}

// ApplyLink validates and returns the two rows as they look after the
// link. Inputs are not modified.
//
// The credit gets a one-time back-reference to the debit. The debit keeps
// its pre-link amount in OriginalDebit on the first link only, is reduced
// by the full credit rounded to cents, and gains one entry in its
// reimbursement list.
func ApplyLink(credit, debit model.Transaction, at time.Time) (model.Transaction, model.Transaction, error) {
	if err := ValidateLink(credit, debit); err != nil {
		return model.Transaction{}, model.Transaction{}, err
	}

	newCredit := credit.Clone()
	newCredit.Reimbursement = &model.Reimbursement{
		IsReimbursement: true,
		ToTransactionID: debit.Key().String(),
		LinkedAt:        at,
	}
	newCredit.LastUpdated = at

	newDebit := debit.Clone()
	if !newDebit.OriginalDebit.Valid {
		newDebit.OriginalDebit = decimal.NewNullDecimal(debit.Debit)
	}
	newDebit.Debit = debit.Debit.Sub(credit.Credit).Round(2)

	var list []model.ReimbursementEntry
	if debit.Reimbursement != nil {
		list = debit.Reimbursement.Clone().List
	}
	list = append(list, model.ReimbursementEntry{
		FromTransactionID: credit.Key().String(),
		Amount:            credit.Credit,
		LinkedAt:          at,
	})
	newDebit.Reimbursement = &model.Reimbursement{
		HasReimbursement: true,
		LinkedAt:         at,
		List:             list,
	}
	newDebit.LastUpdated = at

	return newCredit, newDebit, nil
}
