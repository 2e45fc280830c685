package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/play"
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a saved answer",
	Long: `Play a saved answer with the first available player.
Tries mpv, ffplay and VLC, then aplay for WAV files.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Playing: %s\n", args[0])

		if err := play.New(os.Stdout).PlayFile(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}
