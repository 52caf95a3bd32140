package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"agroquote/quoter/internal/domain"
	"agroquote/quoter/internal/pricing"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecords(w io.Writer, records []domain.PriceRecord) error {
	if output == "json" {
		return printJSON(w, records)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tSKU\tPRODUCT\tPRESENTATION\tUNIT\tUSD\tLOCAL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Category.GetCategoryName(), r.SKU, r.Product, r.Presentation, r.Unit,
			r.PriceUSD.StringFixed(2), r.PriceLocal.StringFixed(2))
	}
	return tw.Flush()
}

func printResolution(w io.Writer, res pricing.Resolution) error {
	if output == "json" {
		return printJSON(w, res)
	}
	if !res.Found {
		_, err := fmt.Fprintln(w, "no price found")
		return err
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%s USD\t(matched by %s)\n",
		res.Record.SKU, res.Record.Product, res.PriceUSD.StringFixed(2), res.Tier)
	return err
}

func printQuote(w io.Writer, q *domain.Quote) error {
	if output == "json" {
		return printJSON(w, q)
	}

	fmt.Fprintf(w, "Quote %s  (%s, rate %s, prices %s)\n", q.ID, q.Timestamp.Format("2006-01-02 15:04"), q.Rate.String(), q.Version)
	fmt.Fprintf(w, "Customer: %s / %s / %s\n\n", q.Customer.Name, q.Customer.Region, q.Customer.City)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tPRODUCT\tPACKAGE\tQTY\tUNIT\tPRICE\tSUBTOTAL\t")
	for _, l := range q.Lines {
		mark := ""
		if !l.PriceFound {
			mark = "no price"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.SKU, l.DisplayName, l.PackageLabel, l.Quantity.String(), l.Unit,
			l.UnitPriceUSD.StringFixed(2), l.SubtotalUSD.StringFixed(2), mark)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal: %s %s\n", q.TotalUSD.StringFixed(2), q.CurrencyCode)
	if q.BelowMinimum() {
		fmt.Fprintf(w, "Below the minimum order of %s %s\n", q.MinimumOrderUSD.StringFixed(2), q.CurrencyCode)
	}
	return nil
}
