package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codyseavey/inventory-valuator/internal/models"
	"github.com/codyseavey/inventory-valuator/internal/services"
)

func newValueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "value <steamid64|profile-url>",
		Short: "Value an account's inventory and store the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(e *env) error {
				ctx := cmd.Context()
				steamID, err := e.app.Profiles.Resolve(ctx, args[0])
				if err != nil {
					return err
				}

				result, err := e.app.Valuation.ValueAccount(ctx, steamID)
				if err != nil {
					return err
				}

				for _, item := range result.Items {
					printf(cmd, "%-60s %5d  $%s\n", item.MarketHashName, item.Amount, item.ValueUSD.StringFixed(2))
				}
				printf(cmd, "%s total: $%s (%d items)\n", result.SteamID64, result.TotalValueUSD.StringFixed(2), len(result.Items))
				return nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <json|xml|yaml> [steamid64]",
		Short: "Export stored valuations",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := services.ParseExportFormat(args[0])
			if err != nil {
				return err
			}

			return withApp(cmd, func(e *env) error {
				ctx := cmd.Context()
				var valuations []models.Valuation
				if len(args) == 2 {
					v, err := e.app.Store.Get(ctx, args[1])
					if err != nil {
						return err
					}
					valuations = []models.Valuation{*v}
				} else if valuations, err = e.app.Store.ExportAll(ctx); err != nil {
					return err
				}

				doc, err := services.EncodeValuations(format, valuations)
				if err != nil {
					return err
				}
				if output == "" {
					printf(cmd, "%s\n", doc)
					return nil
				}
				return os.WriteFile(output, []byte(doc), 0o644)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <json|xml|yaml> <file>",
		Short: "Import valuations, replacing stored ones for the same accounts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := services.ParseExportFormat(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			records, err := services.DecodeValuations(format, string(data))
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("no valuations found in %s", args[1])
			}

			return withApp(cmd, func(e *env) error {
				imported, err := e.app.Store.ImportBatch(cmd.Context(), records)
				if err != nil {
					return err
				}
				printf(cmd, "Imported %d of %d valuations\n", imported, len(records))
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored valuation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("refusing to delete without --yes")
			}
			return withApp(cmd, func(e *env) error {
				deleted, err := e.app.Store.ResetAll(cmd.Context())
				if err != nil {
					return err
				}
				printf(cmd, "Deleted %d valuations\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm deletion")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show how many valuations are stored and their combined value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(e *env) error {
				stats, err := e.app.Store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printf(cmd, "Valuations: %d\nTotal value: $%s\n", stats.Valuations, stats.TotalValueUSD.StringFixed(2))
				return nil
			})
		},
	}
}
