package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/finoob/finoob/internal/accounts"
	"github.com/finoob/finoob/internal/config"
	"github.com/finoob/finoob/internal/rules"
)

func newInitCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new finoob project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if err := runInit(absDir, backend); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized finoob project at %s\n", absDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", config.BackendCSV, "ledger backend (csv or bigquery)")

	return cmd
}

func runInit(dir, backend string) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	cfg := config.Default()
	cfg.Ledger.Backend = backend
	if backend == config.BackendBigQuery {
		// Project has no sensible default; the user fills it in.
		cfg.BigQuery.Project = "your-gcp-project"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Create directory structure.
	dirs := []string{
		"logs",
		"import",
		filepath.Join("import", "processed"),
	}
	if backend == config.BackendCSV {
		dirs = append(dirs, cfg.Ledger.CSVDirectory)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := accounts.Write(filepath.Join(dir, cfg.Data.AccountsFile), accounts.Starter()); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}
	if err := rules.Write(filepath.Join(dir, cfg.Data.CategoriesFile), rules.Starter()); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}

	gitignore := "ledger/\nlogs/\nimport/\n.env\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
