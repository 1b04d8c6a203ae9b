package commands

import (
	"time"

	"affiliate_sheets/internal/affiliate"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	fetchOutput   *string
	fetchCategory *string
	fetchLimit    *int
	fetchMaxPages *int
)

func init() {
	fetchOutput = fetchCmd.Flags().StringP("output", "o", "products.json", "File to write the fetched listings to.")
	fetchCategory = fetchCmd.Flags().String("category", "", "Only keep listings in this category id.")
	fetchLimit = fetchCmd.Flags().Int("limit", 0, "Page size (defaults to PIPELINE_LIMIT).")
	fetchMaxPages = fetchCmd.Flags().Int("max-pages", 0, "Pages to fetch (defaults to PIPELINE_MAX_PAGES).")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [--output <products.json>]",
	Short: "Fetches listings and writes them to a JSON file without publishing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), false, false)
		if err != nil {
			return err
		}

		opts := a.Orchestrator.Defaults().Fetch
		opts = overrideFetch(opts, *fetchCategory, *fetchLimit, *fetchMaxPages)

		start := time.Now()
		listings, err := a.Orchestrator.Fetch(cmd.Context(), opts)
		if err != nil {
			return err
		}
		if err := writeListings(*fetchOutput, listings); err != nil {
			return err
		}

		log.Info().
			Int("count", len(listings)).
			Int64("api_calls", a.Affiliate.GetAPICallCount()).
			Str("output", *fetchOutput).
			Dur("elapsed", time.Since(start)).
			Msg("Products fetched successfully")
		return nil
	},
}

func overrideFetch(opts affiliate.FetchOptions, category string, limit, maxPages int) affiliate.FetchOptions {
	if category != "" {
		opts.CategoryID = category
	}
	if limit > 0 {
		opts.PageSize = limit
	}
	if maxPages > 0 {
		opts.MaxPages = maxPages
	}
	return opts
}
