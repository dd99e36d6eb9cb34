package commands

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/finoob/finoob/internal/model"
	"github.com/finoob/finoob/internal/rules"
)

func newRulesCommand(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Category rule operations",
	}
	cmd.AddCommand(newRulesListCommand(open))
	cmd.AddCommand(newRulesAddCommand(open))
	cmd.AddCommand(newRulesRemoveCommand(open))
	cmd.AddCommand(newRulesDiffCommand())
	return cmd
}

func newRulesListCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List categories and keywords in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rs, err := a.Rules.RuleSet()
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CATEGORY\tKEYWORD\tLABEL")
			for _, c := range rs {
				if len(c.Rules) == 0 {
					fmt.Fprintf(tw, "%s\t-\t-\n", c.Category)
					continue
				}
				for _, r := range c.Rules {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Category, r.Keyword, r.Label)
				}
			}
			return tw.Flush()
		},
	}
}

func newRulesAddCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "add <category> [keyword [label]]",
		Short: "Create a category or add a keyword to one",
		Long: `Create an empty category, or add a keyword rule to a category (creating
it if needed). An existing keyword in the category gets the new label. The
label defaults to the keyword.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runRulesAdd(cmd, a.Rules, args)
		},
	}
}

func runRulesAdd(cmd *cobra.Command, store *rules.Store, args []string) error {
	category := strings.TrimSpace(args[0])
	if category == "" {
		return fmt.Errorf("category name must not be empty")
	}

	rs, err := store.RuleSet()
	if err != nil {
		return err
	}
	cats, err := store.Categories()
	if err != nil {
		return err
	}
	exists := slices.Contains(cats, category)

	if len(args) == 1 {
		if exists {
			return fmt.Errorf("category %q already exists", category)
		}
		if err := store.Save(rs.WithRules(category, []model.Rule{})); err != nil {
			return err
		}
		banner(cmd.OutOrStdout(), successBanner, "SAVED", "Added category %s", category)
		return nil
	}

	keyword := strings.TrimSpace(args[1])
	if keyword == "" {
		return fmt.Errorf("keyword must not be empty")
	}
	label := keyword
	if len(args) == 3 {
		label = args[2]
	}

	old, _ := rs.Rules(category)
	updated := make([]model.Rule, 0, len(old)+1)
	replaced := false
	for _, r := range old {
		if r.Keyword == keyword {
			r.Label = label
			replaced = true
		}
		updated = append(updated, r)
	}
	if !replaced {
		updated = append(updated, model.Rule{Keyword: keyword, Label: label})
	}

	if err := store.Save(rs.WithRules(category, updated)); err != nil {
		return err
	}
	banner(cmd.OutOrStdout(), successBanner, "SAVED", "%s: %s", category, rules.ChangeSummary(old, updated))
	return nil
}

func newRulesRemoveCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <category> [keyword]",
		Short: "Remove a category, or one keyword from it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return runRulesRemove(cmd, a.Rules, args)
		},
	}
}

func runRulesRemove(cmd *cobra.Command, store *rules.Store, args []string) error {
	category := args[0]

	cats, err := store.Categories()
	if err != nil {
		return err
	}
	if !slices.Contains(cats, category) {
		return fmt.Errorf("unknown category %q", category)
	}
	rs, err := store.RuleSet()
	if err != nil {
		return err
	}
	old, _ := rs.Rules(category)

	if len(args) == 1 {
		if err := store.Save(rs.Without(category)); err != nil {
			return err
		}
		banner(cmd.OutOrStdout(), successBanner, "REMOVED", "Category %s (%d keywords)", category, len(old))
		return nil
	}

	keyword := args[1]
	updated := make([]model.Rule, 0, len(old))
	for _, r := range old {
		if r.Keyword != keyword {
			updated = append(updated, r)
		}
	}
	if len(updated) == len(old) {
		return fmt.Errorf("keyword %q not found in %q", keyword, category)
	}

	if err := store.Save(rs.WithRules(category, updated)); err != nil {
		return err
	}
	banner(cmd.OutOrStdout(), successBanner, "SAVED", "%s: %s", category, rules.ChangeSummary(old, updated))
	return nil
}

func newRulesDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <category> <old-file> <new-file>",
		Short: "Summarize keyword changes to one category between two rule files",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := args[0]
			old, err := categoryRules(args[1], category)
			if err != nil {
				return err
			}
			updated, err := categoryRules(args[2], category)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", category, rules.ChangeSummary(old, updated))
			return nil
		},
	}
}

func categoryRules(path, category string) ([]model.Rule, error) {
	rs, err := rules.Load(path)
	if err != nil {
		return nil, err
	}
	r, _ := rs.Rules(category)
	return r, nil
}
