package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spiceflow/internal/cli"
	"github.com/Veraticus/spiceflow/internal/syncer"
)

func syncCmd() *cobra.Command {
	var (
		itemID   int64
		snapshot bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull new transactions from Plaid",
		Long: `Fetch every change since the last sync for one item or all linked items.

Each item's cursor only advances once its changes are fully stored, so an
interrupted or failed sync is safe to rerun.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			provider, err := a.provider()
			if err != nil {
				return err
			}
			coordinator := a.coordinator(provider)

			var target *int64
			total := 1
			if cmd.Flags().Changed("item") {
				target = &itemID
			} else {
				items, err := a.store.ListItems(ctx)
				if err != nil {
					return err
				}
				total = len(items)
			}
			if total == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No linked items. Run 'spiceflow items link-token' to start."))
				return nil
			}

			if snapshot {
				info, err := a.store.Snapshot(ctx, "", true)
				if err != nil {
					return fmt.Errorf("failed to snapshot before sync: %w", err)
				}
				slog.Info("Snapshot created", "snapshot", info.ID)
			}

			bar := cli.NewProgress(cmd.ErrOrStderr(), total, "Syncing items...")
			coordinator.OnItemDone(func(syncer.ItemOutcome) {
				_ = bar.Add(1)
			})

			outcomes, err := coordinator.SyncAll(ctx, target)
			if err != nil {
				return err
			}
			if err := cli.RenderSyncOutcomes(cmd.OutOrStdout(), outcomes); err != nil {
				return err
			}

			return failedItems(outcomes)
		},
	}

	cmd.Flags().Int64Var(&itemID, "item", 0, "Sync only this item id")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "Snapshot the ledger before syncing")

	return cmd
}

// failedItems reports the first failure among outcomes, keeping its kind.
func failedItems(outcomes []syncer.ItemOutcome) error {
	var first error
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			if first == nil {
				first = o.Err
			}
		}
	}
	if first == nil {
		return nil
	}
	return fmt.Errorf("%d of %d items failed to sync: %w", failed, len(outcomes), first)
}
