package commands

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"agroquote/quoter/internal/container"
	"agroquote/quoter/internal/domain"
	"agroquote/quoter/internal/repository"
)

var productByName bool

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "Manage the product display reference",
}

var productsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Overwrite the product reference with the products of the current feed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
			snap, err := app.Catalog.GetPrices(ctx, true)
			if err != nil {
				return err
			}
			products := repository.ProductsFromRecords(snap.Records)
			if err := app.Products.ReplaceProducts(ctx, products); err != nil {
				return err
			}
			log.Infof("✅ Synced %d products from feed version %s", len(products), snap.Version)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d products\n", len(products))
			return err
		})
	},
}

var productsGetCmd = &cobra.Command{
	Use:   "get SKU|NAME",
	Short: "Look a product up by exact SKU, or by name with --name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
			// the in-memory reference is only filled by a refresh
			if err := app.Warmup(ctx); err != nil {
				return err
			}

			var p *domain.Product
			var err error
			if productByName {
				p, err = app.Products.FindByName(ctx, args[0])
			} else {
				p, err = app.Products.FindBySKU(ctx, args[0])
			}
			if err != nil {
				return err
			}

			if output == "json" {
				return printJSON(cmd.OutOrStdout(), p)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", p.SKU, p.Name, p.Presentation)
			return err
		})
	},
}

func init() {
	productsGetCmd.Flags().BoolVar(&productByName, "name", false, "treat the argument as a product name")

	productsCmd.AddCommand(productsSyncCmd, productsGetCmd)
	rootCmd.AddCommand(productsCmd)
}
