package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"agroquote/quoter/internal/container"
	"agroquote/quoter/internal/domain"
)

var (
	cartPath       string
	customerName   string
	customerRegion string
	customerCity   string
	publishQuote   bool
	strictQuote    bool
)

var errUnpricedLines = errors.New("quote has lines without a price")

// cartFile is the JSON document read by the quote command. A bare array of
// items is accepted as well.
type cartFile struct {
	Customer domain.Customer   `json:"customer"`
	Items    []domain.CartItem `json:"items"`
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Assemble a quote for a cart",
	Long: `Assemble a quote for the cart in --cart (a JSON file, or - for stdin).

The cart is either {"customer": {...}, "items": [...]} or a plain array of
items, each with optional "sku", "name", "presentation" and "quantity".`,
	Args: cobra.NoArgs,
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVar(&cartPath, "cart", "", "cart JSON file, - for stdin (required)")
	quoteCmd.Flags().StringVar(&customerName, "customer", "", "customer name")
	quoteCmd.Flags().StringVar(&customerRegion, "region", "", "customer region")
	quoteCmd.Flags().StringVar(&customerCity, "city", "", "customer city")
	quoteCmd.Flags().BoolVar(&publishQuote, "publish", false, "hand the quote to the renderers over Redis")
	quoteCmd.Flags().BoolVar(&strictQuote, "strict", false, "fail when any line has no price")
	quoteCmd.MarkFlagRequired("cart")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	cart, err := loadCart(cmd.InOrStdin(), cartPath)
	if err != nil {
		return err
	}
	if customerName != "" {
		cart.Customer.Name = customerName
	}
	if customerRegion != "" {
		cart.Customer.Region = customerRegion
	}
	if customerCity != "" {
		cart.Customer.City = customerCity
	}

	return withContainer(cmd.Context(), func(ctx context.Context, app *container.Container) error {
		quote, err := app.Quoter.AssembleQuote(ctx, cart.Items, cart.Customer)
		if err != nil {
			return err
		}

		if unpriced := quote.UnpricedLines(); strictQuote && len(unpriced) > 0 {
			for _, l := range unpriced {
				log.Warnf("No price for %q (%s)", l.DisplayName, l.PackageLabel)
			}
			return fmt.Errorf("%w: %d of %d", errUnpricedLines, len(unpriced), len(quote.Lines))
		}

		if publishQuote {
			if app.Quotes == nil {
				return errors.New("cannot publish: redis is disabled")
			}
			msgID, err := app.Quotes.PublishQuote(ctx, quote)
			if err != nil {
				return err
			}
			log.Infof("📤 Quote %s handed off as %s", quote.ID, msgID)
		}

		return printQuote(cmd.OutOrStdout(), quote)
	})
}

func loadCart(stdin io.Reader, path string) (*cartFile, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open cart: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	return parseCart(data)
}

func parseCart(data []byte) (*cartFile, error) {
	var cart cartFile
	if err := json.Unmarshal(data, &cart); err != nil {
		var items []domain.CartItem
		if errArr := json.Unmarshal(data, &items); errArr != nil {
			return nil, fmt.Errorf("failed to decode cart: %w", err)
		}
		cart.Items = items
	}
	if len(cart.Items) == 0 {
		return nil, errors.New("cart has no items")
	}
	return &cart, nil
}
