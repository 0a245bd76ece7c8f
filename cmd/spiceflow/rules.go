package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spiceflow/internal/category"
	"github.com/Veraticus/spiceflow/internal/cli"
	"github.com/Veraticus/spiceflow/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
		Long: `Rules map transaction text to a category.

A contains rule is written through as overrides on matching transactions
when created. A regex rule is evaluated whenever transactions are
categorized and never replaces an explicit override.`,
	}

	cmd.AddCommand(addRuleCmd())
	cmd.AddCommand(listRulesCmd())

	return cmd
}

func addRuleCmd() *cobra.Command {
	var (
		match    string
		pattern  string
		cat      string
		applyNow bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule",
		Example: `  spiceflow rules add --pattern STARBUCKS --category Coffee
  spiceflow rules add --match regex --pattern '^UBER\b' --category Rideshare`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			outcome, err := a.resolver.CreateRule(cmd.Context(), category.RuleInput{
				MatchType: model.MatchType(match),
				Pattern:   pattern,
				Category:  cat,
				ApplyNow:  applyNow,
			})
			if err != nil {
				return err
			}

			msg := fmt.Sprintf("Created rule %d (%s %q → %s)", outcome.Rule.ID, outcome.Rule.MatchType, outcome.Rule.Pattern, outcome.Rule.Category)
			if outcome.Applied != nil {
				msg += fmt.Sprintf(", applied to %d transactions", *outcome.Applied)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(msg))
			return nil
		},
	}

	cmd.Flags().StringVar(&match, "match", string(model.MatchContains), "Match type (contains, regex)")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "Text or regular expression to match")
	cmd.Flags().StringVarP(&cat, "category", "c", "", "Category to assign")
	cmd.Flags().BoolVar(&applyNow, "apply-now", true, "Apply a contains rule to existing transactions")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func listRulesCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rules, err := a.resolver.Rules(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				if rules == nil {
					rules = []model.Rule{}
				}
				return cli.WriteJSON(cmd.OutOrStdout(), rules)
			}
			return cli.RenderRules(cmd.OutOrStdout(), rules)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json)")
	return cmd
}
