package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spiceflow/internal/cli"
	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/dashboard"
)

func dashboardCmd() *cobra.Command {
	var (
		month      string
		account    string
		format     string
		tripartite bool
		exclude    []string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show where the money went for a month",
		Long: `Aggregate posted spending for one month into per-category and per-account
totals, with the most recent transactions and how each was categorized.

Transfers, pending transactions and refunds are left out.`,
		Example: `  spiceflow dashboard
  spiceflow dashboard --month 2024-03 --account all
  spiceflow dashboard --exclude UNCATEGORIZED --format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return common.NewValidationError("format", "must be table or json")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("exclude") {
				exclude = a.cfg.ExcludeCategories
			}

			resp, err := a.dashboard.Query(cmd.Context(), dashboard.Query{
				Month:             month,
				Account:           account,
				Tripartite:        tripartite,
				ExcludeCategories: exclude,
			})
			if err != nil {
				return err
			}

			if format == "json" {
				return cli.WriteJSON(cmd.OutOrStdout(), resp)
			}
			return cli.RenderDashboard(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&month, "month", "m", "", "Month to report (YYYY-MM, default: current month)")
	cmd.Flags().StringVarP(&account, "account", "a", dashboard.AllAccounts, `Account id or "all"`)
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, json)")
	cmd.Flags().BoolVar(&tripartite, "tripartite", false, "Route the flow graph through a single Spending node")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Categories to leave out of totals")

	return cmd
}

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Pin transactions to a category",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <transaction-id> <category>",
		Short: "Set the category of one transaction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverride(cmd, args[0], &args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <transaction-id>",
		Short: "Remove the override from one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOverride(cmd, args[0], nil)
		},
	})

	return cmd
}

func runOverride(cmd *cobra.Command, transactionID string, category *string) error {
	if category != nil && *category == "" {
		return common.NewValidationError("category", "must not be empty")
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.resolver.SetOverride(cmd.Context(), transactionID, category)
	if err != nil {
		return err
	}

	if outcome.Cleared {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Cleared override on "+transactionID))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s → %s", transactionID, *outcome.Category)))
	return nil
}
