package commands

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the pipeline once and prints the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd.Context(), true, true)
		if err != nil {
			return err
		}

		res, err := a.Orchestrator.Run(cmd.Context(), a.Orchestrator.Defaults())
		if err != nil {
			return err
		}
		log.Info().Str("run_id", res.RunID).Msg(res.Message())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}
