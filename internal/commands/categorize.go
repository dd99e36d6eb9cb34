package commands

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/finoob/finoob/internal/auditlog"
	"github.com/finoob/finoob/internal/categorize"
	"github.com/finoob/finoob/internal/model"
	"github.com/finoob/finoob/internal/review"
)

func newCategorizeCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Review categories of ledger transactions",
	}
	cmd.AddCommand(newCategorizeListCommand(open))
	cmd.AddCommand(newCategorizeApplyCommand(open))
	return cmd
}

func newCategorizeListCommand(open opener) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "list <account>",
		Short: "Export transactions without a category as a review file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.Categorize.Uncategorized(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if out == "" {
				return review.WriteTransactions(cmd.OutOrStdout(), txns)
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := review.WriteTransactions(f, txns); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d uncategorized transactions to %s\n", len(txns), out)
			fmt.Fprintf(cmd.OutOrStdout(), "Copy it, edit category and label, then run: finoob categorize apply %s <edited.csv>\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "file to write (default: stdout)")

	return cmd
}

func newCategorizeApplyCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <original.csv> <edited.csv>",
		Short: "Save the category and label edits between two review files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := readTransactionsFile(args[0])
			if err != nil {
				return err
			}
			edited, err := readTransactionsFile(args[1])
			if err != nil {
				return err
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w := cmd.OutOrStdout()
			n, err := a.Categorize.SaveEdits(cmd.Context(), original, edited)
			if errors.Is(err, categorize.ErrNoChanges) {
				fmt.Fprintln(w, "No changes detected")
				return nil
			}
			if err != nil {
				return err
			}

			banner(w, successBanner, "SAVED", "%d transactions updated", n)
			a.Audit(categorizeEntries(categorize.ChangedRows(original, edited))...)
			return nil
		},
	}
}

func readTransactionsFile(path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := review.ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return txns, nil
}

// categorizeEntries writes one activity entry per account touched.
func categorizeEntries(changes []model.CategoryUpdate) []auditlog.Entry {
	byAccount := make(map[string][]string)
	for _, c := range changes {
		byAccount[c.AccountID] = append(byAccount[c.AccountID], c.Key().String())
	}
	accountIDs := make([]string, 0, len(byAccount))
	for id := range byAccount {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)

	entries := make([]auditlog.Entry, 0, len(accountIDs))
	for _, id := range accountIDs {
		ids := byAccount[id]
		entries = append(entries, auditlog.NewEntry(auditlog.ActionCategorize, id, ids,
			fmt.Sprintf("%d category edits", len(ids))))
	}
	return entries
}
