package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/finoob/finoob/internal/app"
	"github.com/finoob/finoob/internal/auditlog"
	"github.com/finoob/finoob/internal/importer"
	"github.com/finoob/finoob/internal/ingest"
	"github.com/finoob/finoob/internal/model"
	"github.com/finoob/finoob/internal/reconcile"
	"github.com/finoob/finoob/internal/review"
	"github.com/finoob/finoob/internal/source"
)

func newImportCommand(open opener) *cobra.Command {
	var out string
	var save bool

	cmd := &cobra.Command{
		Use:   "import <account> <file|gs://bucket/object>",
		Short: "Preview the new rows of a bank export, optionally saving them",
		Long: "Reads a bank export, finds the rows the ledger has not seen yet and writes\n" +
			"them to a review file. Edit the review file, then run \"finoob import save\".\n" +
			"With --save the rows are appended to the ledger directly.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runImport(cmd, a, args[0], args[1], out, save)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "review file to write (default: <account>-review.csv)")
	cmd.Flags().BoolVar(&save, "save", false, "save the new rows without a review step")

	cmd.AddCommand(newImportSaveCommand(open))
	cmd.AddCommand(newImportInboxCommand(open))

	return cmd
}

func runImport(cmd *cobra.Command, a *app.App, accountID, location, out string, save bool) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	file, err := source.Fetch(ctx, location, a.SourceOptions()...)
	if err != nil {
		return err
	}

	preview, err := a.Ingest.Preview(ctx, accountID, file.Reader())
	if err != nil {
		return fmt.Errorf("importing %s: %w", file.Name, err)
	}
	printPreview(w, preview)
	if preview.NothingNew() {
		return nil
	}

	if save {
		if err := saveRows(cmd, a, accountID, preview.Rows); err != nil {
			return err
		}
		return archiveInboxFile(a, location)
	}

	if out == "" {
		out = accountID + "-review.csv"
	}
	if err := writeReviewFile(out, preview.Rows); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %d rows to %s\n", len(preview.Rows), out)
	fmt.Fprintf(w, "Review it, then run: finoob import save %s %s\n", accountID, out)
	return nil
}

func printPreview(w io.Writer, p *ingest.Preview) {
	name := p.Account.Name
	if name == "" {
		name = p.Account.ID
	}

	switch {
	case p.NothingNew():
		banner(w, successBanner, "UP TO DATE", "%s: all %d exported rows are already in the ledger", name, p.Parsed)
	case p.Outcome == reconcile.FirstImport:
		banner(w, infoBanner, "FIRST IMPORT", "%s: %d rows", name, len(p.Rows))
	case p.Warning():
		banner(w, warnBanner, "WARNING", "%s: last ledger transaction %s (%s %q) not found in the export",
			name, p.Marker.TransactionID, p.Marker.Date, p.Marker.Description)
		fmt.Fprintf(w, "All %d exported rows are offered. Remove any already in the ledger before saving.\n", len(p.Rows))
	default:
		banner(w, successBanner, "NEW", "%s: %d rows after %s", name, len(p.Rows), p.Marker.TransactionID)
	}

	if len(p.Rows) == 0 {
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "DATE\tDESCRIPTION\tDEBIT\tCREDIT\tBALANCE\tCATEGORY\tLABEL")
	for _, r := range p.Rows {
		date := "-"
		if r.HasDate() {
			date = r.Date.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			date, r.Description, money(r.Debit), money(r.Credit), nullMoney(r.Balance), r.Category, r.Label)
	}
	tw.Flush()
}

func writeReviewFile(path string, rows []model.StatementRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating review file: %w", err)
	}
	if err := review.WriteStatementRows(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("writing review file %s: %w", path, err)
	}
	return f.Close()
}

func saveRows(cmd *cobra.Command, a *app.App, accountID string, rows []model.StatementRow) error {
	w := cmd.OutOrStdout()

	result, err := a.Ingest.Save(cmd.Context(), accountID, rows)
	if err != nil {
		banner(w, failBanner, "FAILED", "nothing was saved")
		return err
	}
	if len(result.Transactions) == 0 {
		fmt.Fprintln(w, "No rows to save")
		return nil
	}

	first := result.Transactions[0]
	last := result.Transactions[len(result.Transactions)-1]
	banner(w, successBanner, "SAVED", "%d transactions (%s to %s)",
		len(result.Transactions), first.TransactionID, last.TransactionID)
	if result.RefreshErr != nil {
		banner(w, warnBanner, "WARNING", "net worth was not refreshed: %v", result.RefreshErr)
	}
	if result.BalanceErr != nil {
		banner(w, warnBanner, "WARNING", "account balance was not updated: %v", result.BalanceErr)
	}

	a.Audit(auditlog.NewEntry(auditlog.ActionImport, accountID, transactionIDs(result.Transactions),
		fmt.Sprintf("%d transactions", len(result.Transactions))))
	return nil
}

// archiveInboxFile moves a saved export out of the inbox. Files elsewhere
// are left alone.
func archiveInboxFile(a *app.App, location string) error {
	if source.IsGCS(location) {
		return nil
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", location, err)
	}
	inbox, err := filepath.Abs(filepath.Join(a.Root(), "import"))
	if err != nil {
		return fmt.Errorf("resolving inbox: %w", err)
	}
	if filepath.Dir(abs) != inbox {
		return nil
	}
	return importer.MarkProcessed(a.Root(), filepath.Base(abs))
}

func newImportSaveCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "save <account> <review.csv>",
		Short: "Append the rows of a reviewed file to the ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("opening review file: %w", err)
			}
			defer f.Close()

			rows, err := review.ReadStatementRows(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[1], err)
			}
			return saveRows(cmd, a, args[0], rows)
		},
	}
}

func newImportInboxCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "inbox",
		Short: "List exports waiting in the import directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := importer.Scan(a.Root())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(w, "No exports waiting in import/")
				return nil
			}
			tw := newTable(w)
			fmt.Fprintln(tw, "FILE\tSIZE\tPATH")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Name, f.Size, f.Path)
			}
			return tw.Flush()
		},
	}
}
