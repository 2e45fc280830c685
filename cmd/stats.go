package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/output"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show practice totals and the average feedback score",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService()
		if err != nil {
			return err
		}
		defer svc.Close()

		st, err := svc.Stats(cmd.Context())
		if err != nil {
			return err
		}
		output.NewFormatter(os.Stdout).Stats(st)
		return nil
	},
}
