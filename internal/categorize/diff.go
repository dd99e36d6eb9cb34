package categorize

import "github.com/finoob/finoob/internal/model"

// ChangedRows returns the edited rows whose category or label differ from
// the original fetch, matched on (account_id, transaction_number). Edited
// rows with no original counterpart are reported as changed. An empty
// result means there is nothing to persist.
//
// Stores and review files decode a missing category or label as "", so an
// absent value and an empty one never differ here.
func ChangedRows(original, edited []model.Transaction) []model.CategoryUpdate {
	before := make(map[model.Key]model.Transaction, len(original))
	for _, t := range original {
		before[t.Key()] = t
	}

	var changes []model.CategoryUpdate
	for _, t := range edited {
		o, ok := before[t.Key()]
		if ok && o.Category == t.Category && o.Label == t.Label {
			continue
		}
		changes = append(changes, model.CategoryUpdate{
			AccountID:         t.AccountID,
			TransactionNumber: t.TransactionNumber,
			Category:          t.Category,
			Label:             t.Label,
		})
	}
	return changes
}
