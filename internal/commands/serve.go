package commands

import (
	"affiliate_sheets/internal/pipeline"
	"affiliate_sheets/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveSchedule *bool

func init() {
	serveSchedule = serveCmd.Flags().Bool("schedule", false, "Also run the pipeline on PIPELINE_SCHEDULE.")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--schedule]",
	Short: "Serves the HTTP trigger API on SERVER_ADDR.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx, true, *serveSchedule)
		if err != nil {
			return err
		}

		if *serveSchedule {
			s, err := pipeline.NewScheduler(a.Orchestrator, a.Config.Pipeline.Schedule, a.Config.Pipeline.Timezone)
			if err != nil {
				return err
			}
			s.Start()
			defer func() { <-s.Stop().Done() }()
		}

		if a.Config.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.New(a.Orchestrator, a.Affiliate, a.Config.Server.CronSecret)
		return server.ListenAndServe(ctx, a.Config.Server.Addr, srv.Router())
	},
}
