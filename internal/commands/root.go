package commands

import (
	"context"
	"os"

	"affiliate_sheets/internal/app"
	"affiliate_sheets/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "affiliate-sheets",
	Short:         "affiliate-sheets fetches affiliate offers, ranks them and publishes the best to Google Sheets.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// loadApp reads the configuration and builds the clients. publish
// controls whether a Sheets client is created. requireSheet also fails
// fast when no spreadsheet id is configured.
func loadApp(ctx context.Context, publish, requireSheet bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if requireSheet {
		if err := cfg.ValidatePublishing(); err != nil {
			return nil, err
		}
	}
	return app.New(ctx, cfg, publish)
}
