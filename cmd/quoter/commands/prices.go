package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"agroquote/quoter/internal/container"
	"agroquote/quoter/internal/domain"
)

var (
	pricesCategory   string
	findName         string
	findPresentation string
)

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Inspect the price catalog",
}

var pricesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all prices ordered by category and SKU",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
			records, err := app.Catalog.ListPrices(ctx)
			if err != nil {
				return err
			}
			if pricesCategory != "" {
				records = filterCategory(records, domain.ParseCategory(pricesCategory))
			}
			return printRecords(cmd.OutOrStdout(), records)
		})
	},
}

var pricesGetCmd = &cobra.Command{
	Use:   "get SKU",
	Short: "Look a price up by exact SKU",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
			res, err := app.Catalog.GetBySKU(ctx, args[0])
			if err != nil {
				return err
			}
			return printResolution(cmd.OutOrStdout(), res)
		})
	},
}

var pricesFindCmd = &cobra.Command{
	Use:   "find",
	Short: "Look a price up by product name and presentation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
			res, err := app.Catalog.FindPrice(ctx, findName, findPresentation)
			if err != nil {
				return err
			}
			return printResolution(cmd.OutOrStdout(), res)
		})
	},
}

var pricesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the feed now, ignoring the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
			snap, err := app.Catalog.GetPrices(ctx, true)
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "version %s: %d prices, rate %s\n",
				snap.Version, len(snap.Records), snap.Rate.String())
			return err
		})
	},
}

func init() {
	pricesListCmd.Flags().StringVar(&pricesCategory, "category", "", "only list one category (herbicida, insecticida, fungicida)")
	pricesFindCmd.Flags().StringVar(&findName, "name", "", "product name (required)")
	pricesFindCmd.Flags().StringVar(&findPresentation, "presentation", "", "presentation, e.g. \"20 L\" (required)")
	pricesFindCmd.MarkFlagRequired("name")
	pricesFindCmd.MarkFlagRequired("presentation")

	pricesCmd.AddCommand(pricesListCmd, pricesGetCmd, pricesFindCmd, pricesRefreshCmd)
	rootCmd.AddCommand(pricesCmd)
}

func filterCategory(records []domain.PriceRecord, category domain.Category) []domain.PriceRecord {
	out := make([]domain.PriceRecord, 0, len(records))
	for _, r := range records {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out
}
