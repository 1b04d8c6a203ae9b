package commands

import (
	"affiliate_sheets/internal/pipeline"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var scheduleNow *bool

func init() {
	scheduleNow = scheduleCmd.Flags().Bool("now", false, "Also run the pipeline immediately.")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [--now]",
	Short: "Runs the pipeline on the PIPELINE_SCHEDULE cron expression until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx, true, true)
		if err != nil {
			return err
		}

		s, err := pipeline.NewScheduler(a.Orchestrator, a.Config.Pipeline.Schedule, a.Config.Pipeline.Timezone)
		if err != nil {
			return err
		}
		if *scheduleNow {
			s.RunOnce(ctx)
		}

		s.Start()
		<-ctx.Done()

		log.Info().Msg("Stopping scheduler, waiting for any running job")
		<-s.Stop().Done()
		return nil
	},
}
