package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/interviewprep/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"sources"},
	Short:   "List microphones and supported encodings",
	Long:    `List the capture backends, the microphone sources ffmpeg can read from and the encodings it can produce.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("🎙️  Audio Devices (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		backends := audio.GetAvailableBackends()
		if len(backends) == 0 {
			fmt.Printf("❌ ffmpeg not found in PATH, recording is unavailable\n")
			return nil
		}
		fmt.Printf("🔧 BACKENDS: %v\n", backends)

		device := audio.NewFFmpegDevice(cfg)
		fmt.Printf("🎚️  INPUT: %s (format %s)\n\n", device.Input, device.InputFormat)

		sources, err := device.Sources()
		if err != nil {
			slog.Warn("Failed to list sources", "error", err)
		}
		if sources != nil {
			fmt.Printf("📋 SOURCES (%d found):\n", len(sources))
			for i, source := range sources {
				marker := ""
				if source == audio.EchoCancelSource {
					marker = " (echo cancellation)"
				}
				fmt.Printf("  %d. %s%s\n", i+1, source, marker)
			}
			fmt.Println()
		}

		encodings, err := device.Encodings(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("🎵 ENCODINGS (%d supported):\n", len(encodings))
		for _, e := range encodings {
			fmt.Printf("  • %s\n", e)
		}

		fmt.Printf("\n💡 Usage:\n")
		fmt.Printf("  • Set audio.input to a source name, e.g. \"%s\"\n", audio.EchoCancelSource)
		fmt.Printf("  • Order audio.encodings by preference; audio/wav is always available\n\n")
		return nil
	},
}
