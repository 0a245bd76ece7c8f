package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spiceflow/internal/cli"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage ledger snapshots",
		Long: `Snapshots are consistent copies of the ledger stored next to it.

'spiceflow sync --snapshot' takes an automatic one first; only the most
recent automatic snapshots are kept.`,
		Example: `  spiceflow snapshot create --tag before-relink
  spiceflow snapshot list`,
	}

	var tag string
	create := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the ledger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.store.Snapshot(cmd.Context(), tag, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created snapshot %s (%s)\n",
				cli.SuccessStyle.Render(cli.SuccessIcon),
				cli.InfoStyle.Render(info.ID),
				cli.FormatFileSize(info.FileSize))
			return nil
		},
	}
	create.Flags().StringVarP(&tag, "tag", "t", "", "Snapshot name (auto-generated if not provided)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			snapshots, err := a.store.Snapshots()
			if err != nil {
				return err
			}
			return cli.RenderSnapshots(cmd.OutOrStdout(), snapshots)
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
