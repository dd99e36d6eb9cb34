package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finoob/finoob/internal/auditlog"
	"github.com/finoob/finoob/internal/model"
	"github.com/finoob/finoob/internal/reimburse"
)

func newReimburseCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reimburse",
		Short: "Link reimbursement credits to the expenses they repay",
	}
	cmd.AddCommand(newReimburseCandidatesCommand(open))
	cmd.AddCommand(newReimburseExpensesCommand(open))
	cmd.AddCommand(newReimburseLinkCommand(open))
	return cmd
}

func newReimburseCandidatesCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates <account>",
		Short: "List reimbursement credits not yet linked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.Linker.Candidates(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(txns) == 0 {
				fmt.Fprintln(w, "No unlinked reimbursements")
				return nil
			}
			tw := newTable(w)
			fmt.Fprintln(tw, "ID\tDATE\tCREDIT\tLABEL\tDESCRIPTION")
			for _, t := range txns {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.TransactionID, dateString(t), money(t.Credit), t.Label, t.Description)
			}
			return tw.Flush()
		},
	}
}

func newReimburseExpensesCommand(open opener) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "expenses <account>",
		Short: "List recent expenses a reimbursement can be linked to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			txns, err := a.Linker.Expenses(cmd.Context(), args[0], search)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(txns) == 0 {
				fmt.Fprintln(w, "No matching expenses")
				return nil
			}
			tw := newTable(w)
			fmt.Fprintln(tw, "ID\tDATE\tDEBIT\tORIGINAL\tREIMBURSED\tCATEGORY\tDESCRIPTION")
			for _, t := range txns {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					t.TransactionID, dateString(t), money(t.Debit), nullMoney(t.OriginalDebit),
					money(t.ReimbursedAmount()), t.Category, t.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "only descriptions containing this text (case-insensitive)")

	return cmd
}

func newReimburseLinkCommand(open opener) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "link <credit-id> <debit-id>",
		Short: "Apply a reimbursement credit to an expense",
		Long: "Applies the full credit amount to the expense. Both transactions are\n" +
			"updated together or not at all. Ids look like \"ptsb:42\".",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			creditRef, debitRef := args[0], args[1]

			credit, debit, err := a.Linker.Load(ctx, creditRef, debitRef)
			if err != nil {
				return err
			}
			printImpact(w, credit, debit, reimburse.Preview(credit, debit))

			if !yes {
				ok, err := confirm(cmd.InOrStdin(), w, "Apply this link?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(w, "Cancelled, no changes applied")
					return nil
				}
			}

			imp, err := a.Linker.Link(ctx, creditRef, debitRef)
			if err != nil {
				banner(w, failBanner, "FAILED", "%v", err)
				return err
			}
			banner(w, successBanner, "LINKED", "%s now nets %s", debit.TransactionID, money(imp.FinalNet))

			a.Audit(auditlog.NewEntry(auditlog.ActionLink, debit.AccountID,
				[]string{credit.TransactionID, debit.TransactionID},
				fmt.Sprintf("applied %s, net %s to %s", money(imp.Amount), money(imp.CurrentNet), money(imp.FinalNet))))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking for confirmation")

	return cmd
}

func printImpact(w io.Writer, credit, debit model.Transaction, imp reimburse.Impact) {
	fmt.Fprintf(w, "Credit   %s  %s  %s  %s\n", credit.TransactionID, dateString(credit), money(credit.Credit), credit.Description)
	fmt.Fprintf(w, "Expense  %s  %s  %s  %s\n", debit.TransactionID, dateString(debit), money(debit.Debit), debit.Description)

	tw := newTable(w)
	fmt.Fprintf(tw, "Original amount\t%s\n", money(imp.Original))
	if imp.ExistingCount > 0 {
		fmt.Fprintf(tw, "Already reimbursed\t%s (%d)\n", money(imp.ExistingSum), imp.ExistingCount)
	}
	fmt.Fprintf(tw, "Current net\t%s\n", money(imp.CurrentNet))
	fmt.Fprintf(tw, "This reimbursement\t-%s\n", money(imp.Amount))
	fmt.Fprintf(tw, "Net after link\t%s\n", money(imp.FinalNet))
	tw.Flush()

	if imp.Negative() {
		banner(w, warnBanner, "WARNING", "the reimbursement exceeds the expense; its net amount becomes negative")
	}
}

func confirm(in io.Reader, w io.Writer, prompt string) (bool, error) {
	fmt.Fprintf(w, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
