package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spiceflow/internal/cli"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Link and list Plaid items",
		Long: `An item is one linked set of credentials at a financial institution.

Linking is a two step flow: issue a link token, complete Plaid Link with
it, then exchange the public token Link returns.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "link-token",
		Short: "Issue a Plaid Link token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			provider, err := a.provider()
			if err != nil {
				return err
			}
			token, err := syncer.NewLinker(provider, a.store).LinkToken(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "exchange <public-token>",
		Short: "Exchange a Link public token and store the item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			provider, err := a.provider()
			if err != nil {
				return err
			}
			item, err := syncer.NewLinker(provider, a.store).Exchange(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Linked item %d (%s)", item.ID, item.ExternalID)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List linked items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.store.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			return cli.RenderItems(cmd.OutOrStdout(), items)
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	var (
		count  int
		itemID int64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create synthetic sandbox transactions and sync them",
		Long: `Create random purchases at a fixed set of merchants, dated within the
last two weeks, in sandbox items. Each seeded item is synced right after.

Only works against the Plaid sandbox environment.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			provider, err := a.provider()
			if err != nil {
				return err
			}

			var target *int64
			if cmd.Flags().Changed("item") {
				target = &itemID
			}

			seeder := syncer.NewSeeder(provider, a.coordinator(provider))
			outcomes, err := seeder.Seed(cmd.Context(), target, count)
			if err != nil {
				return err
			}
			return cli.RenderSeedOutcomes(cmd.OutOrStdout(), outcomes)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", syncer.DefaultSeedCount, fmt.Sprintf("Transactions per item (1-%d)", syncer.MaxSeedCount))
	cmd.Flags().Int64Var(&itemID, "item", 0, "Seed only this item id")

	return cmd
}
