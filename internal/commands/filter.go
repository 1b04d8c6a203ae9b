package commands

import (
	"fmt"
	"io"
	"os"

	"affiliate_sheets/internal/affiliate"
	"affiliate_sheets/internal/ranking"
	"affiliate_sheets/internal/resolution"
	"affiliate_sheets/internal/rows"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	filterInput    *string
	filterOutput   *string
	filterCriteria ranking.Criteria
)

func init() {
	f := filterCmd.Flags()
	filterInput = f.StringP("input", "i", "products.json", "Listings JSON written by fetch.")
	filterOutput = f.StringP("output", "o", "", "Optional file to write the ranked listings to.")
	f.Float64Var(&filterCriteria.MinRate, "min-rate", 0, "Minimum commission rate in percent.")
	f.Float64Var(&filterCriteria.MaxRate, "max-rate", 0, "Maximum commission rate in percent (0 for none).")
	f.Float64Var(&filterCriteria.MinPrice, "min-price", 0, "Minimum price.")
	f.Float64Var(&filterCriteria.MaxPrice, "max-price", 0, "Maximum price (0 for none).")
	f.Float64Var(&filterCriteria.MinCommission, "min-commission", 0, "Minimum commission amount.")
	f.IntVar(&filterCriteria.TopN, "top", ranking.DefaultTopN, "Number of listings to keep.")
	rootCmd.AddCommand(filterCmd)
}

var filterCmd = &cobra.Command{
	Use:   "filter [--input <products.json>] [--output <ranked.json>]",
	Short: "Ranks previously fetched listings and prints them as a table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		listings, err := readListings(*filterInput)
		if err != nil {
			return err
		}

		matches := ranking.Filter(listings, filterCriteria)
		ranked := ranking.Rank(matches, filterCriteria)
		renderListings(os.Stdout, ranked, ranking.Summarize(matches))

		if *filterOutput != "" {
			if err := writeListings(*filterOutput, ranked); err != nil {
				return err
			}
			log.Info().Int("count", len(ranked)).Str("output", *filterOutput).Msg("Wrote ranked listings")
		}
		return nil
	},
}

func renderListings(w io.Writer, listings []affiliate.Listing, stats ranking.Stats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Name", "Rate %", "Commission", "Price", "Category", "Offer link"})
	for i, l := range listings {
		t.AppendRow(table.Row{
			i + 1,
			l.Name,
			rows.Percent(l.CommissionRate),
			fmt.Sprintf("%.2f", l.Commission),
			fmt.Sprintf("%.2f", l.Price),
			categoryLabel(l),
			l.OfferLink,
		})
	}
	t.AppendFooter(table.Row{
		"", fmt.Sprintf("%d matches", stats.Total),
		fmt.Sprintf("avg %.2f", stats.AverageRatePct), "",
		fmt.Sprintf("avg %.2f", stats.AveragePrice), "", "",
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func categoryLabel(l affiliate.Listing) string {
	if l.MainCategory() == "" {
		return ""
	}
	return resolution.DefaultCategories.Name(l.MainCategory())
}
