package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finoob/finoob/internal/app"
	"github.com/finoob/finoob/internal/buildinfo"
	"github.com/finoob/finoob/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "finoob",
		Short:   "Bank statement reconciliation and reimbursement linking",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: finoob.yaml in ., .finoob or $HOME/.finoob)")

	open := func(cmd *cobra.Command) (*app.App, error) {
		return openApp(cmd, configPath)
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newImportCommand(open))
	rootCmd.AddCommand(newCategorizeCommand(open))
	rootCmd.AddCommand(newReimburseCommand(open))
	rootCmd.AddCommand(newAccountsCommand(open))
	rootCmd.AddCommand(newRulesCommand(open))

	return rootCmd
}

// opener builds the App for a command invocation.
type opener func(cmd *cobra.Command) (*app.App, error)

func openApp(cmd *cobra.Command, configPath string) (*app.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("starting finoob: %w", err)
	}
	return a, nil
}
