package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/finoob/finoob/internal/accounts"
)

func newAccountsCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Account registry operations",
	}
	cmd.AddCommand(newAccountsListCommand(open))
	cmd.AddCommand(newAccountsSetBalanceCommand(open))
	return cmd
}

func newAccountsListCommand(open opener) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts with their last known balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			accts, err := a.Accounts.All(all)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tNAME\tBANK\tBALANCE\tUPDATED\tSTATUS")
			for _, acct := range accts {
				updated := "-"
				if !acct.LastUpdated.IsZero() {
					updated = acct.LastUpdated.Format("2006-01-02 15:04")
				}
				status := "active"
				if !acct.Active {
					status = "archived"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", acct.ID, acct.Name, acct.Bank, money(acct.Balance), updated, status)
			}
			fmt.Fprintf(tw, "TOTAL\t\t\t%s\t\t\n", money(accounts.TotalBalance(accts)))
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include archived accounts")

	return cmd
}

func newAccountsSetBalanceCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "set-balance <account> <amount>",
		Short: "Record an account's closing balance by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Accounts.SetClosingBalance(args[0], amount.Round(2), time.Now().UTC()); err != nil {
				return err
			}
			banner(cmd.OutOrStdout(), successBanner, "SAVED", "%s balance is now %s",
				a.Accounts.DisplayName(args[0]), money(amount))
			return nil
		},
	}
}
