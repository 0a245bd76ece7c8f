package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spiceflow/internal/cli"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

func categoriesCmd() *cobra.Command {
	var used bool

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List category labels",
		Long: `List the suggested category labels, or with --used every category
currently assigned by an override or rule.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !used {
				return cli.RenderCategories(cmd.OutOrStdout(), model.DefaultCategories)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rules, err := a.resolver.Rules(cmd.Context())
			if err != nil {
				return err
			}
			views, err := a.store.ListTransactions(cmd.Context(), service.TransactionFilter{})
			if err != nil {
				return err
			}

			seen := make(map[string]bool)
			for _, r := range rules {
				seen[r.Category] = true
			}
			for i := range views {
				if views[i].Override != nil {
					seen[*views[i].Override] = true
				}
			}

			labels := make([]string, 0, len(seen))
			for c := range seen {
				labels = append(labels, c)
			}
			sort.Strings(labels)
			return cli.RenderCategories(cmd.OutOrStdout(), labels)
		},
	}

	cmd.Flags().BoolVar(&used, "used", false, "List categories in use instead of the suggestions")
	return cmd
}
